// Package httpclient is the transport core shared by every platform
// resource client.
//
// An Adapter turns a Request descriptor into one HTTP exchange over a pooled
// Session, applies a Credential, and classifies the response by content
// type: event streams become a StreamBody, binary media becomes a
// FileResponse, and everything else is read in full and passed through the
// envelope rules in mapBody. Failures surface as one of four error types:
// *APIError, *AuthError, *TransportError and *DecodeError.
//
// # Blocking
//
//	a, err := httpclient.New(httpclient.Config{
//	    BaseURL:    "https://agent.example.com",
//	    Credential: httpclient.BearerAuth(token),
//	})
//
//	bot, err := httpclient.Call[Bot](ctx, a, httpclient.NewRequest(http.MethodGet, "/v1/bot/get",
//	    httpclient.WithQuery("bot_id", id),
//	    httpclient.WithResult(httpclient.ResultSingle)))
//
// # Streaming
//
//	s, err := httpclient.OpenStream(ctx, a, req, decode)
//	for ev, err := range s.All() {
//	    ...
//	}
//
// # Concurrent
//
// SendAsync starts the exchange on its own goroutine and returns a Pending.
// Await gives up when its context ends; the late result is released in the
// background.
//
//	p := a.SendAsync(ctx, req)
//	res, err := p.Await(ctx)
package httpclient
