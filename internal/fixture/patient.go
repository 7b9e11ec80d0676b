// Package fixture generates plausible clinic patients for seeding and load runs.
package fixture

import (
	"fmt"

	"github.com/brianvoe/gofakeit/v7"
)

type Patient struct {
	ID    string
	Name  string
	Phone string
}

// NewPatient returns a patient with a well-formed IC number and mobile number.
func NewPatient(f *gofakeit.Faker) Patient {
	ic := fmt.Sprintf("%02d%02d%02d-%02d-%04d",
		f.Number(0, 99), f.Number(1, 12), f.Number(1, 28),
		f.Number(1, 16), f.Number(0, 9999))
	phone := fmt.Sprintf("01%d-%07d", f.Number(0, 9), f.Number(0, 9999999))

	return Patient{
		ID:    ic,
		Name:  f.Name(),
		Phone: phone,
	}
}
