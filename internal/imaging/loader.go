package imaging

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	lru "github.com/hashicorp/golang-lru/v2"
	_ "golang.org/x/image/webp" // Register WebP format decoder
	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/openrouter-mcp/internal/logging"
	"github.com/ironsheep/openrouter-mcp/internal/normalize"
)

const (
	// MaxDimension bounds both sides of a prepared image.
	MaxDimension = 800

	// JPEGQuality is the quality prepared images are encoded at.
	JPEGQuality = 80

	// MaxSourceBytes caps how much is read from any single source.
	MaxSourceBytes = 20 << 20

	// maxConcurrentLoads bounds LoadAll's fan-out.
	maxConcurrentLoads = 4

	// DefaultCacheSize is how many prepared images a Loader keeps.
	DefaultCacheSize = 64
)

// Loader turns image sources into data URLs ready to embed in a chat
// message.
//
// A source is a local file path, an http(s) URL or a data URI. Every source
// is decoded, fit within MaxDimension x MaxDimension and re-encoded as JPEG,
// so what is sent upstream has a predictable size whatever the input.
//
// Prepared images are kept in a bounded LRU keyed by source. Data URIs
// are keyed by a digest so the cache never holds the raw payload. Different
// spellings of the same file (relative vs absolute) get separate entries.
//
// Loader is safe for concurrent use.
type Loader struct {
	cache *lru.Cache[string, string]

	log      *logging.Logger
	fetchURL func(ctx context.Context, url string) ([]byte, error)
}

// NewLoader creates a loader that fetches remote images with client. A nil
// client uses http.DefaultClient.
func NewLoader(client *http.Client, log *logging.Logger) *Loader {
	if client == nil {
		client = http.DefaultClient
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	cache, _ := lru.New[string, string](DefaultCacheSize) // only fails for a non-positive size
	return &Loader{
		cache:    cache,
		log:      log.Named("imaging"),
		fetchURL: httpFetcher(client),
	}
}

// Load returns the prepared data URL for source, from the cache when
// possible.
func (l *Loader) Load(ctx context.Context, source string) (string, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return "", fmt.Errorf("image source is empty")
	}

	key := cacheKey(source)
	if url, ok := l.cache.Get(key); ok {
		return url, nil
	}

	raw, err := l.read(ctx, source)
	if err != nil {
		return "", err
	}
	prepared, err := Prepare(raw)
	if err != nil {
		return "", fmt.Errorf("failed to prepare image %s: %w", describeSource(source), err)
	}
	url := normalize.EncodeDataURI("image/jpeg", prepared)

	l.log.Debug("image prepared",
		logging.String("source", describeSource(source)),
		logging.Int("input_bytes", len(raw)),
		logging.Int("output_bytes", len(prepared)),
	)

	l.cache.Add(key, url)
	return url, nil
}

// LoadAll loads every source concurrently and returns the data URLs in
// input order. The first failure cancels the remaining loads.
func (l *Loader) LoadAll(ctx context.Context, sources []string) ([]string, error) {
	urls := make([]string, len(sources))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLoads)
	for i, src := range sources {
		g.Go(func() error {
			url, err := l.Load(ctx, src)
			if err != nil {
				return fmt.Errorf("image %d: %w", i+1, err)
			}
			urls[i] = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return urls, nil
}

// Clear drops every cached image.
func (l *Loader) Clear() {
	l.cache.Purge()
}

// Evict drops the cached image for source, if any.
func (l *Loader) Evict(source string) {
	l.cache.Remove(cacheKey(strings.TrimSpace(source)))
}

// Cached reports how many prepared images are held.
func (l *Loader) Cached() int {
	return l.cache.Len()
}

// cacheKey is source itself, or a sha256 digest for data URIs.
func cacheKey(source string) string {
	if !normalize.IsDataURI(source) {
		return source
	}
	sum := sha256.Sum256([]byte(source))
	return "sha256:" + hex.EncodeToString(sum[:])
}

func (l *Loader) read(ctx context.Context, source string) ([]byte, error) {
	switch {
	case normalize.IsDataURI(source):
		_, data, err := normalize.DecodeDataURI(source)
		if err != nil {
			return nil, fmt.Errorf("invalid data URI: %w", err)
		}
		return data, nil

	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return l.fetchURL(ctx, source)

	default:
		path := strings.TrimPrefix(source, "file://")
		if strings.HasPrefix(path, "~/") {
			if home, err := os.UserHomeDir(); err == nil {
				path = filepath.Join(home, path[2:])
			}
		}
		return readFile(path)
	}
}

func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()
	return readLimited(f, path)
}

func httpFetcher(client *http.Client) func(ctx context.Context, url string) ([]byte, error) {
	return func(ctx context.Context, url string) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("invalid image URL: %w", err)
		}
		req.Header.Set("Accept", "image/*")

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch image: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("failed to fetch image %s: status %d", url, resp.StatusCode)
		}
		return readLimited(resp.Body, url)
	}
}

func readLimited(r io.Reader, name string) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxSourceBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) > MaxSourceBytes {
		return nil, fmt.Errorf("image %s exceeds %d bytes", name, MaxSourceBytes)
	}
	return data, nil
}

// Prepare decodes raw image bytes, fits them within MaxDimension and
// re-encodes them as JPEG. EXIF orientation is applied first.
func Prepare(raw []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	img = Fit(img)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(JPEGQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// Fit downsizes img to fit within MaxDimension x MaxDimension, keeping the
// aspect ratio. Smaller images are returned unchanged.
func Fit(img image.Image) image.Image {
	b := img.Bounds()
	if b.Dx() <= MaxDimension && b.Dy() <= MaxDimension {
		return img
	}
	return imaging.Fit(img, MaxDimension, MaxDimension, imaging.Lanczos)
}

// describeSource shortens data URIs for logs and error messages.
func describeSource(source string) string {
	if normalize.IsDataURI(source) {
		head, _, _ := strings.Cut(source, ",")
		return head + ",..."
	}
	return source
}
