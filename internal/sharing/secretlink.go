package sharing

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/fula-go/cryptostore/internal/common/errors"
)

// BuildSecretLink encodes token as a URL whose fragment carries every key
// material byte, per spec §4.7: "{gateway}/fula/share/{share_id}#{base64url(cbor(token))}".
// The server sees only the path portion; the fragment never reaches it.
func BuildSecretLink(token *ShareToken, gatewayURL string) (string, error) {
	serialized, err := token.Serialize()
	if err != nil {
		return "", err
	}
	fragment := base64.RawURLEncoding.EncodeToString(serialized)
	return fmt.Sprintf("%s/fula/share/%s#%s", strings.TrimRight(gatewayURL, "/"), token.ShareID.String(), fragment), nil
}

// ParseSecretLink reverses BuildSecretLink. Callers SHOULD blank the
// fragment before logging a URL obtained this way — it is never logged by
// this package.
func ParseSecretLink(url string) (*ShareToken, error) {
	idx := strings.IndexByte(url, '#')
	if idx < 0 {
		return nil, errors.New("sharing: secret link has no fragment", nil)
	}
	fragment := url[idx+1:]
	data, err := base64.RawURLEncoding.DecodeString(fragment)
	if err != nil {
		return nil, errors.New("sharing: secret link fragment is not valid base64url", err)
	}
	return DeserializeShareToken(data)
}
