package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-session-secret-32bytes-long!"

func testUserInfo() *OAuthUserInfo {
	return &OAuthUserInfo{
		ProviderUserID: "google-sub-1",
		Email:          "taro@tokium.jp",
		Name:           "Taro",
		Provider:       ProviderGoogle,
		IDToken:        "google-id-token",
		AccessToken:    "google-access-token",
	}
}

func testRelayResult() *RelayResult {
	return &RelayResult{}
}

func TestProjectToken_WithRelay_CarriesBackendValues(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	relay := testRelayResult()
	relay.Tokens.AccessToken = "t1"
	relay.Tokens.RefreshToken = "r1"
	relay.User.ID = "42"
	relay.User.Email = "taro@tokium.jp"

	claims := ProjectToken(testUserInfo(), relay, now, time.Hour)

	if claims.Backend.AccessToken != "t1" || claims.Backend.RefreshToken != "r1" {
		t.Errorf("backend = %+v", claims.Backend)
	}
	if claims.User.ID != "42" {
		t.Errorf("user id = %q, want %q", claims.User.ID, "42")
	}
	if claims.Identity.Email != "taro@tokium.jp" || claims.Identity.SubjectID != "google-sub-1" {
		t.Errorf("identity = %+v", claims.Identity)
	}
	if claims.Provider.IDToken != "google-id-token" {
		t.Errorf("provider id token = %q", claims.Provider.IDToken)
	}
	if claims.ID == "" {
		t.Error("jti should be set")
	}
	if !claims.ExpiresAt.Time.Equal(now.Add(time.Hour)) {
		t.Errorf("expiresAt = %v, want %v", claims.ExpiresAt.Time, now.Add(time.Hour))
	}
}

func TestProjectToken_WithoutRelay_LeavesBackendEmpty(t *testing.T) {
	claims := ProjectToken(testUserInfo(), nil, time.Now(), time.Hour)

	if claims.Backend.AccessToken != "" {
		t.Errorf("backend access token = %q, want empty", claims.Backend.AccessToken)
	}
	if claims.User.ID != "" {
		t.Errorf("user id = %q, want empty", claims.User.ID)
	}
	if claims.Identity.Email != "taro@tokium.jp" {
		t.Errorf("identity email = %q", claims.Identity.Email)
	}
}

func TestProjectSession_ExposesUserAndToken(t *testing.T) {
	relay := testRelayResult()
	relay.Tokens.AccessToken = "t1"
	relay.User.ID = "42"
	relay.User.Email = "taro@tokium.jp"

	claims := ProjectToken(testUserInfo(), relay, time.Now(), time.Hour)
	session := ProjectSession(claims)

	if session.JWTToken != "t1" {
		t.Errorf("jwtToken = %q, want %q", session.JWTToken, "t1")
	}
	if session.User.ID != "42" {
		t.Errorf("user id = %q, want %q", session.User.ID, "42")
	}
	if session.ID != claims.ID {
		t.Errorf("session id = %q, want %q", session.ID, claims.ID)
	}
	if !session.Authenticated() {
		t.Error("session with jwtToken should be authenticated")
	}
}

func TestProjectSession_Nil(t *testing.T) {
	if ProjectSession(nil) != nil {
		t.Error("ProjectSession(nil) should return nil")
	}
}

func TestSessionClaims_Record(t *testing.T) {
	relay := testRelayResult()
	relay.Tokens.RefreshToken = "r1"
	claims := ProjectToken(testUserInfo(), relay, time.Now(), time.Hour)

	record := claims.Record()
	if record.ID != claims.ID {
		t.Errorf("record id = %q, want %q", record.ID, claims.ID)
	}
	if record.Backend.RefreshToken != "r1" {
		t.Errorf("record refresh token = %q", record.Backend.RefreshToken)
	}
	if record.ExpiresAt.IsZero() || record.IssuedAt.IsZero() {
		t.Error("record timestamps should be set")
	}
}

func TestSessionCodec_RoundTrip(t *testing.T) {
	codec := NewSessionCodec(testSecret)
	relay := testRelayResult()
	relay.Tokens.AccessToken = "t1"
	claims := ProjectToken(testUserInfo(), relay, time.Now(), time.Hour)

	token, err := codec.Encode(claims)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	decoded, err := codec.Decode(token)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if decoded.ID != claims.ID {
		t.Errorf("jti = %q, want %q", decoded.ID, claims.ID)
	}
	if decoded.Backend.AccessToken != "t1" {
		t.Errorf("backend access token = %q", decoded.Backend.AccessToken)
	}
}

func TestSessionCodec_Decode_Rejects(t *testing.T) {
	codec := NewSessionCodec(testSecret)
	now := time.Now()

	expired, _ := codec.Encode(ProjectToken(testUserInfo(), nil, now.Add(-2*time.Hour), time.Hour))
	otherKey, _ := NewSessionCodec("another-secret").Encode(ProjectToken(testUserInfo(), nil, now, time.Hour))

	noneToken := jwt.NewWithClaims(jwt.SigningMethodNone, ProjectToken(testUserInfo(), nil, now, time.Hour))
	unsigned, _ := noneToken.SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-jwt"},
		{"expired", expired},
		{"wrong key", otherKey},
		{"alg none", unsigned},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.Decode(tt.token)
			if !errors.Is(err, ErrInvalidSession) {
				t.Errorf("Decode() error = %v, want ErrInvalidSession", err)
			}
		})
	}
}

func TestBackendTokenExpired(t *testing.T) {
	now := time.Now()
	sign := func(exp time.Time) string {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
		})
		s, _ := token.SignedString([]byte("backend-secret"))
		return s
	}

	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{"empty token", "", true},
		{"opaque token", "t1", false},
		{"future exp", sign(now.Add(time.Hour)), false},
		{"past exp", sign(now.Add(-time.Minute)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := backendTokenExpired(tt.token, now); got != tt.want {
				t.Errorf("backendTokenExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}
