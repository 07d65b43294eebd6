// Package seed provisions identities and resources from YAML.
package seed

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/spaceko/resource-status-service/internal/core/domain"
	"github.com/spaceko/resource-status-service/internal/core/ports"
)

//go:embed campus.yaml
var campusYAML []byte

type Data struct {
	Users     []domain.User           `yaml:"users"`
	Resources []domain.ResourceRecord `yaml:"resources"`
}

// Result counts what Apply wrote.
type Result struct {
	Users     int
	Resources int
}

// Load decodes seed data and validates every entry before anything is
// written.
func Load(r io.Reader) (Data, error) {
	var d Data
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		return Data{}, fmt.Errorf("decode seed data: %w", err)
	}
	for i, u := range d.Users {
		if err := u.Validate(); err != nil {
			return Data{}, fmt.Errorf("user %d (%s): %w", i, u.UserCode, err)
		}
	}
	for i, rec := range d.Resources {
		if _, err := rec.Input(); err != nil {
			return Data{}, fmt.Errorf("resource %d (%s): %w", i, rec.Name, err)
		}
	}
	return d, nil
}

// LoadFile reads path, or the embedded campus data when path is empty.
func LoadFile(path string) (Data, error) {
	if path == "" {
		return Default()
	}
	f, err := os.Open(path)
	if err != nil {
		return Data{}, err
	}
	defer f.Close()
	return Load(f)
}

func Default() (Data, error) {
	return Load(bytes.NewReader(campusYAML))
}

// Apply creates missing users and, only when the store holds no resources
// yet, the seed resources. Running it twice is harmless.
func Apply(ctx context.Context, d Data, resources ports.ResourceStore, users ports.UserStore, now time.Time) (Result, error) {
	var res Result
	for _, u := range d.Users {
		if u.CreatedAt.IsZero() {
			u.CreatedAt = now
		}
		if u.CreatedBy == "" && u.UserCode != domain.SuperAdminCode {
			u.CreatedBy = domain.SuperAdminCode
		}
		_, err := users.Create(ctx, u)
		switch {
		case errors.Is(err, domain.ErrConflict):
			continue
		case err != nil:
			return res, fmt.Errorf("seed user %s: %w", u.UserCode, err)
		}
		res.Users++
	}

	existing, err := resources.List(ctx, domain.ResourceFilter{})
	if err != nil {
		return res, fmt.Errorf("check existing resources: %w", err)
	}
	if len(existing) > 0 {
		return res, nil
	}
	for _, rec := range d.Resources {
		in, err := rec.Input()
		if err != nil {
			return res, err
		}
		if _, err := resources.Create(ctx, in); err != nil {
			return res, fmt.Errorf("seed resource %s: %w", rec.Name, err)
		}
		res.Resources++
	}
	return res, nil
}
