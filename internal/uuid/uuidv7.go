package uuid

import (
	"crypto/rand"
	"encoding/binary"
	"time"

	googleuuid "github.com/google/uuid"
)

// New generates a UUIDv7 stamped with the current time.
func New() string {
	return NewAt(time.Now())
}

// NewAt generates a UUIDv7 whose 48-bit millisecond prefix is taken from t,
// so records created with an injected clock still sort by creation time.
//
// Layout: 48 bits unix millis | 4 bits version (0111) | 12 bits random |
// 2 bits variant (10) | 62 bits random.
func NewAt(t time.Time) string {
	var u googleuuid.UUID

	binary.BigEndian.PutUint64(u[0:8], uint64(t.UnixMilli())<<16)

	if _, err := rand.Read(u[6:]); err != nil {
		return googleuuid.New().String()
	}

	u[6] = (u[6] & 0x0f) | 0x70
	u[8] = (u[8] & 0x3f) | 0x80

	return u.String()
}

// Time extracts the millisecond timestamp embedded in a UUIDv7 string.
func Time(s string) (time.Time, error) {
	parsed, err := googleuuid.Parse(s)
	if err != nil {
		return time.Time{}, err
	}
	ms := binary.BigEndian.Uint64(parsed[0:8]) >> 16
	return time.UnixMilli(int64(ms)).UTC(), nil
}

// IsValid checks if a string is a valid UUID
func IsValid(s string) bool {
	_, err := googleuuid.Parse(s)
	return err == nil
}
