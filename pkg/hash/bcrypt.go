package hash

import "golang.org/x/crypto/bcrypt"

// Cost is the bcrypt work factor for stored passwords. Raising it only
// affects new hashes; existing ones keep the cost they were created with.
const Cost = bcrypt.DefaultCost

func HashPassword(p string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(p), Cost)
	return string(bytes), err
}

func CheckPassword(hashed, plain string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
	return err == nil
}
