package fixture

import (
	"regexp"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
)

func TestNewPatientFormats(t *testing.T) {
	f := gofakeit.New(42)
	ic := regexp.MustCompile(`^\d{6}-\d{2}-\d{4}$`)
	phone := regexp.MustCompile(`^01[0-9]-\d{7,8}$`)

	for i := 0; i < 200; i++ {
		p := NewPatient(f)
		assert.Regexp(t, ic, p.ID)
		assert.Regexp(t, phone, p.Phone)
		assert.NotEmpty(t, p.Name)
	}
}
