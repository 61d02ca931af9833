// Package mockserver is an in-process fake of the agent platform HTTP API.
//
// It speaks the platform's wire protocol: "event" / "data:data" event-stream
// frames for chats, the code/msg, error_code and error_message error
// envelopes, and the Conversation wrapper for conversation calls. Tests use
// it through httptest; cmd/mockplatform serves it on a real port.
//
//	srv := mockserver.New(mockserver.WithToken("tok"))
//	ts := httptest.NewServer(srv.Handler())
//	defer ts.Close()
package mockserver
