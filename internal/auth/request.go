package auth

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/vyrodovalexey/signgw/internal/auth/signature"
)

// Header names of a signed request.
const (
	HeaderAccessKey     = "accessKey"
	HeaderRequestParams = "requestParams"
	HeaderNonce         = "nonce"
	HeaderTimestamp     = "timestamp"
	HeaderSign          = "sign"
)

// Values used when a numeric header is missing or malformed. Both fail
// their check in the gate.
const (
	MalformedNonce     int64 = -1
	MalformedTimestamp int64 = 0
)

// IPExtractor returns the source IP of a request.
type IPExtractor interface {
	Extract(r *http.Request) string
}

// SignedRequest holds the authentication inputs of one request.
type SignedRequest struct {
	AccessKey       string
	RequestParams   string
	Nonce           int64
	Timestamp       int64
	ClientSignature string
	SourceIP        string

	// Raw header values, signed verbatim.
	RawNonce     string
	RawTimestamp string
}

// ExtractSignedRequest reads the signing headers and source IP of r. It never
// fails: unparsable numbers become MalformedNonce or MalformedTimestamp.
func ExtractSignedRequest(r *http.Request, ips IPExtractor) *SignedRequest {
	rawNonce := r.Header.Get(HeaderNonce)
	rawTimestamp := r.Header.Get(HeaderTimestamp)

	sr := &SignedRequest{
		AccessKey:       r.Header.Get(HeaderAccessKey),
		RequestParams:   r.Header.Get(HeaderRequestParams),
		Nonce:           parseInt(rawNonce, MalformedNonce),
		Timestamp:       parseInt(rawTimestamp, MalformedTimestamp),
		ClientSignature: r.Header.Get(HeaderSign),
		RawNonce:        rawNonce,
		RawTimestamp:    rawTimestamp,
	}
	if ips != nil {
		sr.SourceIP = ips.Extract(r)
	}
	return sr
}

// SigningFields returns the fields covered by the signature.
func (r *SignedRequest) SigningFields() signature.Fields {
	return signature.Fields{
		AccessKey:     r.AccessKey,
		RequestParams: r.RequestParams,
		Nonce:         r.RawNonce,
		Timestamp:     r.RawTimestamp,
	}
}

// Apply sets the signing headers of req from fields and sig. Used by
// clients and tests.
func Apply(req *http.Request, fields signature.Fields, sig string) {
	req.Header.Set(HeaderAccessKey, fields.AccessKey)
	req.Header.Set(HeaderRequestParams, fields.RequestParams)
	req.Header.Set(HeaderNonce, fields.Nonce)
	req.Header.Set(HeaderTimestamp, fields.Timestamp)
	req.Header.Set(HeaderSign, sig)
}

func parseInt(raw string, fallback int64) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return fallback
	}
	return v
}
