// Package adapter defines the two backend surfaces the router unifies and the
// pure helpers that sit between them and chatbridge's canonical model:
//
//   - TypedBackend (and the optional StreamingBackend) is the typed completion client.
//   - CommandExecutor is the optional command-execution surface that takes an opaque
//     JSON payload and answers with one JSON blob or one callback per chunk.
//
// TranslateOptions, MapTool, BuildPayload and the Normalize functions are side-effect
// free. Concrete backends live in provider-specific subpackages.
package adapter
