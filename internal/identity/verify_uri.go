package identity

import (
	"net/url"
	"strings"

	"github.com/rfmesh/rfmesh/internal/common"
)

// VerificationURI builds the meshit://verify?fp=...&nick=... URI
// spec §6 defines for out-of-band peer verification.
func VerificationURI(fp common.Fingerprint, nickname string) string {
	v := url.Values{}
	v.Set("fp", string(fp))
	v.Set("nick", nickname)
	return "meshit://verify?" + v.Encode()
}

// ParseVerificationURI recovers the fingerprint and nickname from a
// meshit://verify URI, rejecting anything else.
func ParseVerificationURI(raw string) (fp common.Fingerprint, nickname string, err error) {
	u, parseErr := url.Parse(raw)
	if parseErr != nil {
		return "", "", common.ErrParse
	}
	if u.Scheme != "meshit" || u.Host != "verify" {
		return "", "", common.ErrParse
	}

	q := u.Query()
	fpStr := q.Get("fp")
	if len(fpStr) != common.FingerprintLen || !isHex(fpStr) {
		return "", "", common.ErrParse
	}

	return common.Fingerprint(fpStr), q.Get("nick"), nil
}

func isHex(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool {
		return !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f' || r >= 'A' && r <= 'F')
	}) == -1
}
