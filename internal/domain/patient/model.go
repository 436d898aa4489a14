package patient

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Patient struct {
	ID         uuid.UUID `json:"id"`
	Code       string    `json:"code"`
	Name       string    `json:"name"`
	Age        int       `json:"age"`
	Sex        string    `json:"sex"`
	Phone      string    `json:"phone"`
	BloodGroup string    `json:"blood_group"`
	Address    string    `json:"address"`
	Key        string    `json:"key"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

var validSex = map[string]bool{"Male": true, "Female": true, "Other": true}

var validBloodGroups = map[string]bool{
	"": true, "A+": true, "A-": true, "B+": true, "B-": true,
	"AB+": true, "AB-": true, "O+": true, "O-": true,
}

// Key identifies a person across registrations: phone plus lowercased name.
func Key(phone, name string) string {
	return strings.TrimSpace(phone) + "-" + strings.ToLower(strings.TrimSpace(name))
}

// FormatCode renders a sequence value as a patient code such as P000042.
func FormatCode(seq int64) string {
	return fmt.Sprintf("P%06d", seq)
}
