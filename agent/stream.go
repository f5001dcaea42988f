package agent

import (
	"context"

	"github.com/BaSui01/researchflow/internal/eventbus"
	"github.com/BaSui01/researchflow/llm"
)

// invokeStreaming runs a streaming LLM call for a node, republishing every
// token as a debug_<stage>_token event and a debug_<stage>_end marker when
// the stream completes. The returned full response text is authoritative.
func invokeStreaming(ctx context.Context, client llm.Client, req llm.Request, pub eventbus.Publisher, stage string) (*llm.Response, error) {
	resp, err := client.InvokeStream(ctx, req, func(token string) {
		pub.Publish("debug_"+stage+"_token", token, nil)
	})
	if err != nil {
		return nil, err
	}
	pub.Publish("debug_"+stage+"_end", "stream_completed", nil)
	return resp, nil
}
