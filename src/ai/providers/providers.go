// Package providers links every model provider into the binary.
package providers

import (
	_ "github.com/zhenghchen/calhacks2025/src/ai/anthropic"
)
