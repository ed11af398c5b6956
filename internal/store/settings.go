package store

import "fmt"

// Keys of the persisted layout
const (
	KeySSID                  = "ssid"
	KeyPassword              = "password"
	KeyProvisioned           = "provisioned"
	KeyFactoryResetRequested = "factoryResetRequested"
)

// Settings gives typed access to the device's persisted layout.
type Settings struct {
	store Store
}

// NewSettings wraps a Store
func NewSettings(s Store) *Settings {
	return &Settings{store: s}
}

// Store returns the underlying store
func (s *Settings) Store() Store {
	return s.store
}

func (s *Settings) getString(ns Namespace, key string) (string, error) {
	v, ok, err := s.store.Get(ns, key)
	if err != nil || !ok {
		return "", err
	}
	str, _ := v.AsString()
	return str, nil
}

func (s *Settings) getFlag(ns Namespace, key string) (bool, error) {
	v, ok, err := s.store.Get(ns, key)
	if err != nil || !ok {
		return false, err
	}
	return v.AsBool(), nil
}

// Credential returns the stored ssid and password. Both are empty when
// nothing has been provisioned.
func (s *Settings) Credential() (ssid, password string, err error) {
	if ssid, err = s.getString(NamespaceCredentials, KeySSID); err != nil {
		return "", "", err
	}
	if password, err = s.getString(NamespaceCredentials, KeyPassword); err != nil {
		return "", "", err
	}
	return ssid, password, nil
}

// SaveCredential persists ssid and password. If the password write fails the
// ssid is rolled back so callers never observe a half-written credential.
func (s *Settings) SaveCredential(ssid, password string) error {
	prior, hadPrior, err := s.store.Get(NamespaceCredentials, KeySSID)
	if err != nil {
		return err
	}

	if err := s.store.Put(NamespaceCredentials, KeySSID, String(ssid)); err != nil {
		return err
	}

	if err := s.store.Put(NamespaceCredentials, KeyPassword, String(password)); err != nil {
		var rbErr error
		if hadPrior {
			rbErr = s.store.Put(NamespaceCredentials, KeySSID, prior)
		} else {
			rbErr = s.store.Delete(NamespaceCredentials, KeySSID)
		}
		if rbErr != nil {
			return fmt.Errorf("%w (ssid rollback also failed: %v)", err, rbErr)
		}
		return err
	}

	return nil
}

// Provisioned reports the persisted provisioned flag
func (s *Settings) Provisioned() (bool, error) {
	return s.getFlag(NamespaceCredentials, KeyProvisioned)
}

// SetProvisioned persists the provisioned flag
func (s *Settings) SetProvisioned(v bool) error {
	return s.store.Put(NamespaceCredentials, KeyProvisioned, Bool(v))
}

// FactoryResetRequested reports whether a factory reset is pending for the next boot
func (s *Settings) FactoryResetRequested() (bool, error) {
	return s.getFlag(NamespaceSystem, KeyFactoryResetRequested)
}

// SetFactoryResetRequested persists the factory reset request flag
func (s *Settings) SetFactoryResetRequested(v bool) error {
	return s.store.Put(NamespaceSystem, KeyFactoryResetRequested, Bool(v))
}

// ClearAll clears every namespace, stopping at the first failure.
func (s *Settings) ClearAll() error {
	for _, ns := range Namespaces {
		if err := s.store.Clear(ns); err != nil {
			return err
		}
	}
	return nil
}
