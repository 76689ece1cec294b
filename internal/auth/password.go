package auth

import (
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes a plaintext password with configured cost.
func HashPassword(password string, cost int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ComparePassword verifies a password against its hashed value.
func ComparePassword(hashed, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}

// dummyHashes caches one throwaway hash per bcrypt cost.
var dummyHashes sync.Map

// ComparePasswordDummy burns roughly the same time as a real comparison at the
// given cost. Login calls it for unknown emails so response timing does not
// reveal which accounts exist.
func ComparePasswordDummy(plain string, cost int) {
	hash, ok := dummyHashes.Load(cost)
	if !ok {
		generated, err := bcrypt.GenerateFromPassword([]byte("research-portal-dummy"), cost)
		if err != nil {
			return
		}
		hash, _ = dummyHashes.LoadOrStore(cost, generated)
	}
	_ = bcrypt.CompareHashAndPassword(hash.([]byte), []byte(plain))
}
