package drm

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jmylchreest/streamrelay/internal/relayerr"
)

// Fetcher is the narrow HTTP surface the key client needs; satisfied by
// *internal/httpclient.Client.
type Fetcher interface {
	Get(ctx context.Context, url string) (*http.Response, error)
}

// KeyClient requests Widevine content keys from the operator-supplied
// decryption-key API (§6).
type KeyClient struct {
	fetcher    Fetcher
	apiFormat  string // e.g. "https://api.example.com/key?service={service}&id={id}&pssh-box={pssh-box}"
	logger     *slog.Logger
}

// NewKeyClient constructs a KeyClient against the given URL template.
func NewKeyClient(fetcher Fetcher, apiFormat string, logger *slog.Logger) *KeyClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &KeyClient{fetcher: fetcher, apiFormat: apiFormat, logger: logger}
}

// Key is a resolved content key: its key ID and key bytes.
type Key struct {
	KeyID []byte
	Key   []byte
}

type keyAPIResponse struct {
	Status bool              `json:"status"`
	Keys   map[string]string `json:"keys"`
}

// BuildPSSHBoxParam base64-encodes a 4-byte-size-prefixed PSSH box (the
// {pssh-box} substitution value) from a raw PSSH box's bytes.
func BuildPSSHBoxParam(psshBox []byte) string {
	return base64.StdEncoding.EncodeToString(psshBox)
}

// BuildPSSHBoxParamFromPayload prepends a 4-byte big-endian size prefix
// ahead of a raw PSSH payload and base64-encodes the result, used when the
// caller only has the PSSH payload bytes and not a full box.
func BuildPSSHBoxParamFromPayload(data []byte) string {
	out := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(out[:4], uint32(len(out)))
	copy(out[4:], data)
	return base64.StdEncoding.EncodeToString(out)
}

// FetchKey resolves the content key for the given service/id/PSSH-box.
// psshBoxBase64 is the already-size-prefixed, base64-encoded PSSH box
// (BuildPSSHBoxParam or DrmInfo.PSSHBase64). A missing keyId or
// status=false each log and return (nil, nil) -- the orchestrator treats a
// nil key as a fatal cycle error, not a Go error, per §6.
func (c *KeyClient) FetchKey(ctx context.Context, service, id, psshBoxBase64 string) (*Key, error) {
	url := c.apiFormat
	url = strings.ReplaceAll(url, "{service}", service)
	url = strings.ReplaceAll(url, "{id}", id)
	url = strings.ReplaceAll(url, "{pssh-box}", psshBoxBase64)

	resp, err := c.fetcher.Get(ctx, url)
	if err != nil {
		return nil, relayerr.Wrap(relayerr.CategoryNetwork, relayerr.CodeOperationAborted, "key API request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, relayerr.Wrap(relayerr.CategoryNetwork, relayerr.CodeOperationAborted, "reading key API response", err)
	}

	var parsed keyAPIResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, relayerr.Wrap(relayerr.CategoryNetwork, relayerr.CodeOperationAborted, "parsing key API response", err)
	}

	if !parsed.Status {
		c.logger.Warn("key API returned status=false", slog.String("service", service), slog.String("id", id))
		return nil, nil
	}
	if len(parsed.Keys) == 0 {
		c.logger.Warn("key API returned no keys", slog.String("service", service), slog.String("id", id))
		return nil, nil
	}

	for hexKeyID, hexKey := range parsed.Keys {
		keyID, err := hex.DecodeString(hexKeyID)
		if err != nil {
			c.logger.Warn("key API returned non-hex keyId", slog.String("keyId", hexKeyID))
			continue
		}
		key, err := hex.DecodeString(hexKey)
		if err != nil {
			c.logger.Warn("key API returned non-hex key", slog.String("keyId", hexKeyID))
			continue
		}
		return &Key{KeyID: keyID, Key: key}, nil
	}

	c.logger.Warn("key API response had no decodable key entries", slog.String("service", service), slog.String("id", id))
	return nil, nil
}

// HexKeyID is a convenience formatter for logging/decrypter invocation.
func HexKeyID(k *Key) string {
	if k == nil {
		return ""
	}
	return fmt.Sprintf("%x", k.KeyID)
}
