// Package audit delivers account-flow events to a caller-supplied sink without
// blocking the flow that produced them.
//
// # Components
//
//   - [Event] is one audit record (flow id, field, step, outcome).
//   - [Sink] consumes events: [ChannelSink], [JSONWriterSink], [MultiSink], [NoOpSink].
//   - [Dispatcher] is the buffered async relay with drop-if-full or block-if-full
//     semantics.
//
// This package does not decide which events to emit; the client and the flow
// controllers do.
package audit
