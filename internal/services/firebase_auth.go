package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/AnshRaj112/kokoro-journal/internal/models"
)

const firebaseSignInPath = "/accounts:signInWithPassword"

// firebaseErrorCodes translates Identity Toolkit REST messages into the
// provider codes used by the web SDK.
var firebaseErrorCodes = map[string]string{
	"INVALID_EMAIL":               CodeInvalidEmail,
	"MISSING_EMAIL":               CodeInvalidEmail,
	"EMAIL_NOT_FOUND":             CodeUserNotFound,
	"INVALID_PASSWORD":            CodeWrongPassword,
	"INVALID_LOGIN_CREDENTIALS":   CodeInvalidCredential,
	"TOO_MANY_ATTEMPTS_TRY_LATER": CodeTooManyRequests,
	"USER_DISABLED":               CodeUserDisabled,
}

// FirebaseVerifier signs in against Firebase Authentication's REST API.
type FirebaseVerifier struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewFirebaseVerifier(apiKey, baseURL string, timeout time.Duration) *FirebaseVerifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &FirebaseVerifier{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type firebaseSignInRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type firebaseSignInResponse struct {
	LocalID string `json:"localId"`
	Email   string `json:"email"`
}

type firebaseErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (f *FirebaseVerifier) Verify(ctx context.Context, email, password string) (*models.Identity, error) {
	body, err := json.Marshal(firebaseSignInRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := f.baseURL + firebaseSignInPath + "?key=" + url.QueryEscape(f.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &AuthError{Code: "auth/network-request-failed", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &AuthError{Code: "auth/network-request-failed", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		var errResp firebaseErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err != nil || errResp.Error.Message == "" {
			return nil, &AuthError{Code: "auth/internal-error", Err: fmt.Errorf("status %d", resp.StatusCode)}
		}
		return nil, &AuthError{Code: firebaseCode(errResp.Error.Message), Err: fmt.Errorf("%s", errResp.Error.Message)}
	}

	var signIn firebaseSignInResponse
	if err := json.Unmarshal(respBody, &signIn); err != nil || signIn.LocalID == "" {
		return nil, &AuthError{Code: "auth/internal-error", Err: fmt.Errorf("unexpected sign-in response")}
	}

	return &models.Identity{ID: signIn.LocalID, Email: signIn.Email}, nil
}

// firebaseCode maps a REST message such as
// "TOO_MANY_ATTEMPTS_TRY_LATER : Access to this account ..." to a code.
func firebaseCode(message string) string {
	key, _, _ := strings.Cut(message, ":")
	key = strings.TrimSpace(key)
	if code, ok := firebaseErrorCodes[key]; ok {
		return code
	}
	return "auth/" + strings.ToLower(strings.ReplaceAll(key, "_", "-"))
}
