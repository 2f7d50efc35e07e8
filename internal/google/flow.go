package google

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/browser"
	"golang.org/x/oauth2"
)

const loopbackSuccessPage = `<!DOCTYPE html>
<html><head><title>gapi</title></head>
<body><p>The authentication flow has completed. You may close this window.</p></body>
</html>
`

// LoopbackFlow is the installed-application authorization flow: it serves a
// redirect endpoint on 127.0.0.1 and waits for Google to deliver the code.
type LoopbackFlow struct {
	// ListenAddr defaults to 127.0.0.1:0 (random port).
	ListenAddr string

	// OpenBrowser opens the authorization URL with the system browser.
	OpenBrowser bool

	// Out receives the authorization URL. Nil discards it.
	Out io.Writer

	// Prompt overrides how the authorization URL is presented.
	Prompt func(authURL string)
}

type callbackResult struct {
	code string
	err  error
}

// Run performs the flow and exchanges the code for a token. It honours ctx
// cancellation while waiting for the browser.
func (f *LoopbackFlow) Run(ctx context.Context, conf *oauth2.Config) (*oauth2.Token, error) {
	addr := f.ListenAddr
	if addr == "" {
		addr = "127.0.0.1:0"
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen for OAuth callback: %w", err)
	}

	c := *conf
	c.RedirectURL = fmt.Sprintf("http://%s/", ln.Addr().String())

	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()
	authURL := c.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.S256ChallengeOption(verifier),
	)

	results := make(chan callbackResult, 1)
	srv := &http.Server{
		Handler:           f.callbackHandler(state, results),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case results <- callbackResult{err: err}:
			default:
			}
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	f.present(authURL)

	var res callbackResult
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-results:
	}
	if res.err != nil {
		return nil, res.err
	}

	tok, err := c.Exchange(ctx, res.code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	return tok, nil
}

func (f *LoopbackFlow) present(authURL string) {
	if f.Prompt != nil {
		f.Prompt(authURL)
		return
	}
	if f.Out != nil {
		fmt.Fprintf(f.Out, "Please visit this URL to authorize gapi:\n\n%s\n\n", authURL)
	}
	if f.OpenBrowser {
		// The URL was printed above, a failed launch is not fatal.
		_ = browser.OpenURL(authURL)
	}
}

func (f *LoopbackFlow) callbackHandler(state string, results chan<- callbackResult) http.Handler {
	deliver := func(r callbackResult) {
		select {
		case results <- r:
		default:
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}

		q := r.URL.Query()
		if e := q.Get("error"); e != "" {
			http.Error(w, "Authorization failed: "+e, http.StatusBadRequest)
			deliver(callbackResult{err: fmt.Errorf("authorization denied: %s", e)})
			return
		}
		if q.Get("state") != state {
			http.Error(w, "State mismatch", http.StatusBadRequest)
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "Missing authorization code", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, loopbackSuccessPage)
		deliver(callbackResult{code: code})
	})
}
