package fake

import (
	"math/rand"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/woozymasta/srvdash/internal/models"
)

type recorder struct {
	forms []models.ServerForm
}

func (r *recorder) Add(form models.ServerForm) (models.Server, error) {
	r.forms = append(r.forms, form)
	return models.Server{Name: form.Name}, nil
}

func TestGenerateServers(t *testing.T) {
	rec := &recorder{}

	added := GenerateServers(rec, 40, rand.New(rand.NewSource(7)))

	assert.Equal(t, 40, added)
	names := make(map[string]bool)
	for _, f := range rec.forms {
		assert.False(t, names[f.Name], "duplicate name %s", f.Name)
		names[f.Name] = true

		addr, err := netip.ParseAddr(f.IP)
		if assert.NoError(t, err, f.IP) {
			assert.True(t, addr.IsPrivate(), f.IP)
		}
		assert.True(t, f.Status.Valid())
		assert.Regexp(t, `^Rack [A-Z][1-9]$`, f.Location)
	}
}
