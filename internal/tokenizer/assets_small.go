//go:build bpe_default_small

package tokenizer

import _ "embed"

//go:embed assets/multi.wiki.bpe.vs100000.vocab.lz4
var defaultSmallAsset []byte

func init() { defaultAssets[DefaultSmall] = defaultSmallAsset }
