package relay

import (
	"sort"
	"sync"
)

// ResponseKind distinguishes the two handler output shapes.
type ResponseKind int

const (
	// ResponseText is an inline text response, carried in the mailbox.
	ResponseText ResponseKind = iota + 1
	// ResponseFile is a binary response, uploaded as a side file and
	// referenced from the mailbox by token.
	ResponseFile
)

// Response is the tagged union a handler produces: inline text or binary
// bytes. Build one with Text or File.
type Response struct {
	Kind ResponseKind
	Text string
	Data []byte
}

// Text builds an inline text response.
func Text(s string) Response {
	return Response{Kind: ResponseText, Text: s}
}

// File builds a binary response. The bytes never enter the mailbox file;
// the listener uploads them out of band.
func File(data []byte) Response {
	return Response{Kind: ResponseFile, Data: data}
}

// Handler answers one request. Handlers take no arguments: the route path
// itself is the whole request. Execution is synchronous inside the poll
// cycle, so a blocking handler stalls the loop.
type Handler func() Response

// Dispatcher maps route strings to handlers.
//
// Matching is exact string comparison only — no patterns, no parameters.
// Registration is last-write-wins: registering a route again silently
// replaces the previous handler.
type Dispatcher struct {
	mu     sync.RWMutex
	routes map[string]Handler
}

// NewDispatcher creates an empty route table.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{routes: make(map[string]Handler)}
}

// Register binds a handler to a route, replacing any previous binding.
func (d *Dispatcher) Register(route string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.routes[route] = h
}

// Lookup returns the handler for an exact route match.
// No match means no response: the envelope stays Pending and is retried
// next cycle until it expires.
func (d *Dispatcher) Lookup(route string) (Handler, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	h, ok := d.routes[route]
	return h, ok
}

// Routes returns the registered routes in sorted order, for logging.
func (d *Dispatcher) Routes() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	routes := make([]string, 0, len(d.routes))
	for r := range d.routes {
		routes = append(routes, r)
	}
	sort.Strings(routes)
	return routes
}
