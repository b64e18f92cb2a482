package local

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bnema/tribora/internal/domain"
	"github.com/bnema/tribora/internal/port"
	"golang.org/x/crypto/blake2b"
)

var (
	ErrURLExpired       = errors.New("signed url expired")
	ErrInvalidSignature = errors.New("invalid signature")
)

// Storage keeps objects as files under root. Signed URLs carry a keyed
// BLAKE2b MAC over the object path and expiry.
type Storage struct {
	root    string
	baseURL string
	key     []byte
	now     func() time.Time
}

func New(root, baseURL string, secret []byte) (*Storage, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: signing secret is required", domain.ErrValidation)
	}
	if len(secret) > blake2b.Size {
		sum := blake2b.Sum256(secret)
		secret = sum[:]
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &Storage{
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     secret,
		now:     time.Now,
	}, nil
}

func (s *Storage) resolve(objectPath string) (string, error) {
	clean := path.Clean("/" + objectPath)
	if clean == "/" || strings.Contains(objectPath, "..") {
		return "", fmt.Errorf("%w: invalid object path %q", domain.ErrValidation, objectPath)
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

func (s *Storage) Upload(ctx context.Context, objectPath string, r io.Reader, size int64, contentType string) error {
	dest, err := s.resolve(objectPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("create object directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: r})
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("write object: %w", err)
	}
	if size >= 0 && n != size {
		return fmt.Errorf("write object: got %d bytes, expected %d", n, size)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("move object into place: %w", err)
	}
	return nil
}

func (s *Storage) Download(ctx context.Context, objectPath string) (io.ReadCloser, error) {
	src, err := s.resolve(objectPath)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(src)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: object %s", domain.ErrNotFound, objectPath)
		}
		return nil, fmt.Errorf("open object: %w", err)
	}
	return f, nil
}

func (s *Storage) SignedURL(ctx context.Context, objectPath string, ttl time.Duration) (string, error) {
	if _, err := s.resolve(objectPath); err != nil {
		return "", err
	}
	expires := s.now().Add(ttl).Unix()
	sig, err := s.sign(objectPath, expires)
	if err != nil {
		return "", err
	}
	q := url.Values{}
	q.Set("expires", strconv.FormatInt(expires, 10))
	q.Set("sig", sig)
	return s.baseURL + "/" + strings.TrimLeft(objectPath, "/") + "?" + q.Encode(), nil
}

// VerifySignedURL checks a signature produced by SignedURL.
func (s *Storage) VerifySignedURL(objectPath string, expires int64, sig string) error {
	if s.now().Unix() > expires {
		return ErrURLExpired
	}
	want, err := s.sign(objectPath, expires)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(want), []byte(sig)) != 1 {
		return ErrInvalidSignature
	}
	return nil
}

func (s *Storage) sign(objectPath string, expires int64) (string, error) {
	mac, err := blake2b.New256(s.key)
	if err != nil {
		return "", fmt.Errorf("init mac: %w", err)
	}
	mac.Write([]byte(strings.TrimLeft(objectPath, "/")))
	mac.Write([]byte{'\n'})
	mac.Write([]byte(strconv.FormatInt(expires, 10)))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Remove ignores objects that do not exist.
func (s *Storage) Remove(ctx context.Context, paths ...string) error {
	var errs []error
	for _, p := range paths {
		if p == "" {
			continue
		}
		full, err := s.resolve(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove %s: %w", p, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Storage) RemovePrefix(ctx context.Context, prefix string) error {
	full, err := s.resolve(prefix)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(full); err != nil {
		return fmt.Errorf("remove %s: %w", prefix, err)
	}
	return nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

var _ port.BlobStorage = (*Storage)(nil)
