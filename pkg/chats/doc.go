// Package chats provides a provider-agnostic data model for multi-provider chat.
//
// It is organized into sub-packages:
//   - [github.com/germanamz/chaichat/pkg/chats/role]: conversation roles (user, assistant)
//   - [github.com/germanamz/chaichat/pkg/chats/content]: multi-modal content parts (text, image, video file, audio file)
//   - [github.com/germanamz/chaichat/pkg/chats/message]: turns composed of a role and content parts
//   - [github.com/germanamz/chaichat/pkg/chats/chat]: the mutable transcript
//
// No provider or API code is included; chats is a foundation layer
// that adapters can build on.
package chats
