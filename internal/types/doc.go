/*
Package types defines the data shared across execbench.

# Test Cases

TestCase:
  - Language tag (plain string, extensible)
  - Source code, trimmed when the catalog is built
  - Expected output substring
  - Never mutated after the catalog is built

# Wire Types

ExecutionRequest:
  - Body POSTed to {base}/execute
  - "expected" is only serialized for PayloadWithExpected

ExecutionResponse:
  - Status, raw body, duration, sizes
  - Request ID sent in X-Request-ID
  - Opaque until a validator decodes it

# Run Choices

SelectionPolicy:
  - all-in-order: every case once per iteration
  - uniform-random-one: one random case per iteration

ResponseShape:
  - dual-channel: {"stdout", "stderr"}
  - single-channel: {"output"}

PayloadShape:
  - language-code: {"language", "code"}
  - with-expected: {"language", "code", "expected"}

# Errors

ConfigurationError is the only error that aborts a run. It is returned before
any request is sent and matches ErrConfiguration through errors.Is.
*/
package types
