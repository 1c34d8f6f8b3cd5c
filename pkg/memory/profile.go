package memory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// ProfileFileName is the persistent profile file inside a user's memory
// directory.
const ProfileFileName = "profile.txt"

// Extractor merges a finished conversation into the existing profile
// text, returning the updated profile. Last write wins; no history is
// kept.
type Extractor interface {
	Merge(ctx context.Context, existing, conversation string) (string, error)
}

// Profile is the persistent user profile: a single evolving text blob
// of durable facts about the user, rewritten wholesale on each update.
type Profile struct {
	path      string
	extractor Extractor
	buffer    string
}

// OpenProfile loads a user's profile from dir. A missing file means
// nothing is known yet and loads as the empty string.
func OpenProfile(dir string, extractor Extractor) (*Profile, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("profile: create dir: %w", err)
	}
	path := filepath.Join(dir, ProfileFileName)
	buffer := ""
	if data, err := os.ReadFile(path); err == nil {
		buffer = string(data)
	}
	return &Profile{path: path, extractor: extractor, buffer: buffer}, nil
}

// Text returns the current profile text, empty when nothing is known
// yet.
func (p *Profile) Text() string { return p.buffer }

// Update merges conversation into the profile via the extraction call
// and persists the replacement buffer.
func (p *Profile) Update(ctx context.Context, conversation string) error {
	updated, err := p.extractor.Merge(ctx, p.buffer, conversation)
	if err != nil {
		return err
	}
	p.buffer = updated
	return p.save()
}

// Clear resets the profile to empty and persists.
func (p *Profile) Clear() error {
	p.buffer = ""
	return p.save()
}

func (p *Profile) save() error {
	if err := os.WriteFile(p.path, []byte(p.buffer), 0o644); err != nil {
		return fmt.Errorf("profile: write: %w", err)
	}
	return nil
}
