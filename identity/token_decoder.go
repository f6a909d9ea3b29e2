package identity

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-orgcreator/core"
)

// JWTClaimTokenDecoder reads the claim payload out of a claim request token.
// The identity service verifies the signature when the claim is issued, so
// the token is parsed without verification here.
type JWTClaimTokenDecoder struct {
	parser *jwt.Parser
}

func NewJWTClaimTokenDecoder() *JWTClaimTokenDecoder {
	return &JWTClaimTokenDecoder{parser: jwt.NewParser()}
}

type claimTokenClaims struct {
	DID       string         `json:"did"`
	Signer    string         `json:"signer"`
	ClaimData claimDataClaim `json:"claimData"`
	jwt.RegisteredClaims
}

type claimDataClaim struct {
	ClaimType        string          `json:"claimType"`
	ClaimTypeVersion any             `json:"claimTypeVersion"`
	Fields           json.RawMessage `json:"fields"`
	RequestorFields  json.RawMessage `json:"requestorFields"`
}

type fieldClaim struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

func (d *JWTClaimTokenDecoder) Decode(token string) (core.ClaimToken, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return core.ClaimToken{}, fmt.Errorf("identity: claim token is empty")
	}
	parser := jwt.NewParser()
	if d != nil && d.parser != nil {
		parser = d.parser
	}
	claims := &claimTokenClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return core.ClaimToken{}, fmt.Errorf("identity: parse claim token: %w", err)
	}

	fields, err := decodeFields(claims.ClaimData.Fields)
	if err != nil {
		return core.ClaimToken{}, err
	}
	legacy, err := decodeFields(claims.ClaimData.RequestorFields)
	if err != nil {
		return core.ClaimToken{}, err
	}

	// requestorFields trail fields so Lookup prefers the current shape and
	// falls back to the legacy one for empty values.
	return core.ClaimToken{
		ClaimType:        strings.TrimSpace(claims.ClaimData.ClaimType),
		ClaimTypeVersion: readString(claims.ClaimData.ClaimTypeVersion),
		Fields:           append(fields, legacy...),
	}, nil
}

// decodeFields accepts both the list form [{key, value}] and the legacy
// object form {key: value}.
func decodeFields(raw json.RawMessage) ([]core.Field, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	switch trimmed[0] {
	case '[':
		var list []fieldClaim
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("identity: decode claim fields: %w", err)
		}
		out := make([]core.Field, 0, len(list))
		for _, item := range list {
			if strings.TrimSpace(item.Key) == "" {
				continue
			}
			out = append(out, core.Field{Key: item.Key, Value: readString(item.Value)})
		}
		return out, nil
	case '{':
		var object map[string]any
		if err := json.Unmarshal(raw, &object); err != nil {
			return nil, fmt.Errorf("identity: decode claim fields: %w", err)
		}
		keys := make([]string, 0, len(object))
		for key := range object {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		out := make([]core.Field, 0, len(keys))
		for _, key := range keys {
			out = append(out, core.Field{Key: key, Value: readString(object[key])})
		}
		return out, nil
	default:
		return nil, fmt.Errorf("identity: unsupported claim fields shape")
	}
}

func readString(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case bool:
		if typed {
			return "true"
		}
		return "false"
	default:
		encoded, err := json.Marshal(typed)
		if err != nil {
			return fmt.Sprint(typed)
		}
		return string(encoded)
	}
}

var _ core.ClaimTokenDecoder = (*JWTClaimTokenDecoder)(nil)
