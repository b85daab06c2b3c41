package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	goFaceAuth "github.com/MrEthical07/goFaceAuth"
)

// StepUpProofHeader carries the proof returned by Engine.VerifyStepUp.
const StepUpProofHeader = "X-Step-Up-Proof"

type stepUpProofContextKey struct{}

func StepUpProofFromContext(ctx context.Context) (*goFaceAuth.StepUpProof, bool) {
	proof, ok := ctx.Value(stepUpProofContextKey{}).(*goFaceAuth.StepUpProof)
	return proof, ok
}

// RequireStepUp admits a request only when it carries a valid step-up
// proof, read from StepUpProofHeader or else an Authorization bearer token.
// While the engine's step-up gate is disabled every request passes and no
// proof is injected.
func RequireStepUp(engine *goFaceAuth.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			if !engine.StepUpEnabled() {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := proofToken(r)
			if !ok {
				http.Error(w, "step-up required", http.StatusForbidden)
				return
			}

			proof, err := engine.VerifyStepUpProof(r.Context(), token)
			if err != nil {
				if errors.Is(err, goFaceAuth.ErrStepUpUnavailable) {
					http.Error(w, "service unavailable", http.StatusServiceUnavailable)
					return
				}
				http.Error(w, "step-up required", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), stepUpProofContextKey{}, proof)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func proofToken(r *http.Request) (string, bool) {
	if v := strings.TrimSpace(r.Header.Get(StepUpProofHeader)); v != "" {
		return v, true
	}
	return bearerToken(r.Header.Get("Authorization"))
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
