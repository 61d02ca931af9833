// Package chat runs agent chats over the platform transport.
//
// A chat query answers with an event stream. Each frame carries an outer
// "event" label and a "data:data" JSON payload whose own "event" field
// selects the decoded variant; DecodeEvent performs that mapping and can be
// used with any httpclient.Stream.
//
//	s, err := chats.Stream(ctx, chat.CreateRequest{UserID: "u1", Query: "hi"})
//	if err != nil {
//		return err
//	}
//	for ev, err := range s.All() {
//		if err != nil {
//			return err
//		}
//		if ev.Kind == chat.EventMessage {
//			fmt.Print(ev.Message.Answer)
//		}
//	}
package chat
