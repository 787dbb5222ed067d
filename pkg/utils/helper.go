package utils

import (
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// ParseInt converts string to int with default value
func ParseInt(value string, defaultValue int) int {
	if value == "" {
		return defaultValue
	}

	result, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	if result < 1 {
		return defaultValue
	}

	return result
}

// GenerateBookingNumber creates a human-facing booking reference.
// Format: BKyyMM + 4 random digits
func GenerateBookingNumber(now time.Time) string {
	return fmt.Sprintf("BK%s%04d", now.Format("0601"), rand.Intn(10000))
}

// ParseDate parses a YYYY-MM-DD calendar date into midnight UTC.
func ParseDate(value string) (time.Time, error) {
	return time.Parse("2006-01-02", value)
}

// DateOnly truncates t to its calendar date at midnight UTC, keeping the
// wall-clock date of t's own location.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
