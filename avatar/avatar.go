package avatar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/nfnt/resize"
)

const (
	// DefaultStyle is the DiceBear collection used by the gallery.
	DefaultStyle = "avataaars"
	// MaxDimension bounds both sides of a normalized photo.
	MaxDimension = 500

	galleryBase = "https://api.dicebear.com/9.x/"
	jpegQuality = 85
)

var (
	ErrTooLarge        = errors.New("avatar: image too large")
	ErrUnsupported     = errors.New("avatar: unsupported or corrupt image")
	ErrUnknownGender   = errors.New("avatar: gender must be male or female")
	ErrStoreNotEnabled = errors.New("avatar: object store not configured")
)

// Gender selects the seed list and the illustration parameters.
type Gender string

const (
	Male   Gender = "male"
	Female Gender = "female"
)

// ParseGender accepts "male"/"female" and the Spanish "hombre"/"mujer".
func ParseGender(v string) (Gender, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "male", "hombre", "m":
		return Male, nil
	case "female", "mujer", "f":
		return Female, nil
	}
	return "", ErrUnknownGender
}

var (
	maleSeeds   = []string{"Felix", "Max", "Jack", "Oliver", "Harry", "Charlie", "James", "Thomas", "Jacob", "George", "Aarav", "Kenji", "Malik"}
	femaleSeeds = []string{"Aneka", "Bella", "Maya", "Luna", "Ada", "Sasha", "Clara", "Zoe", "Eva", "Mia", "Priya", "Yuki", "Zuri"}
)

// Seeds returns the gallery seeds offered for gender.
func Seeds(g Gender) []string {
	if g == Male {
		return append([]string(nil), maleSeeds...)
	}
	return append([]string(nil), femaleSeeds...)
}

// Option is one illustrated avatar the user can pick.
type Option struct {
	Seed string
	URL  string
}

// Gallery lists every option for gender in display order.
func Gallery(style string, g Gender) []Option {
	seeds := Seeds(g)
	out := make([]Option, 0, len(seeds))
	for _, s := range seeds {
		out = append(out, Option{Seed: s, URL: GalleryURL(style, s, g)})
	}
	return out
}

// GalleryURL builds the DiceBear URL for seed. The result is stored as-is in
// foto_url, so it must stay stable for a given seed and gender.
func GalleryURL(style, seed string, g Gender) string {
	if style == "" {
		style = DefaultStyle
	}
	q := []string{"seed=" + url.QueryEscape(seed)}
	if g == Male {
		q = append(q, "top=shortHair,theCaesar,shortFlat", "clothing=suitAndTie", "facialHairProbability=0")
	} else {
		q = append(q, "top=longHair,bob,curvy,frida", "clothing=collarAndSweater,shirtVNeck")
	}
	q = append(q, "backgroundColor=f1f5f9", "backgroundType=solid", "mouth=smile", "eyes=default")
	return galleryBase + url.PathEscape(style) + "/svg?" + strings.Join(q, "&")
}

// ObjectKey is the bucket key of an uploaded profile photo. Re-uploading
// overwrites the previous photo.
func ObjectKey(personaID int) string {
	return "perfil_" + strconv.Itoa(personaID) + ".jpg"
}

// ResolveURL turns a stored foto_url into something a browser can load:
// absolute URLs (gallery avatars) pass through, bare keys get publicBase.
func ResolveURL(publicBase, fotoURL string) string {
	if fotoURL == "" {
		return ""
	}
	if strings.HasPrefix(fotoURL, "http://") || strings.HasPrefix(fotoURL, "https://") {
		return fotoURL
	}
	if publicBase == "" {
		return fotoURL
	}
	return strings.TrimRight(publicBase, "/") + "/" + fotoURL
}

// Normalize reads at most maxBytes from r, decodes a JPEG or PNG, shrinks it
// to fit MaxDimension and re-encodes it as JPEG.
func Normalize(r io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, ErrTooLarge
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	b := img.Bounds()
	if b.Dx() > MaxDimension || b.Dy() > MaxDimension {
		img = resize.Thumbnail(MaxDimension, MaxDimension, img, resize.Lanczos3)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Store persists uploaded photos.
type Store interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
}

// MemoryStore keeps objects in process memory. The dev server and tests use it.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]Object
}

// Object is one stored photo.
type Object struct {
	Body        []byte
	ContentType string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]Object)}
}

func (s *MemoryStore) Put(_ context.Context, key string, body []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = Object{Body: append([]byte(nil), body...), ContentType: contentType}
	return nil
}

// Get returns the object stored under key.
func (s *MemoryStore) Get(key string) (Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.objects[key]
	return o, ok
}
