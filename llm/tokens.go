package llm

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encOnce sync.Once
	encoder *tiktoken.Tiktoken
)

// EstimateTokens 估算文本的 token 数。优先使用 cl100k_base 编码器；
// 编码器不可用时退化为字符数/4 的粗略估算。
func EstimateTokens(text string) int {
	encOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			encoder = enc
		}
	})

	if encoder != nil {
		return len(encoder.Encode(text, nil, nil))
	}
	return len(text) / 4
}
