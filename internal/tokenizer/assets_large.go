//go:build bpe_default_large

package tokenizer

import _ "embed"

//go:embed assets/multi.wiki.bpe.vs1000000.vocab.lz4
var defaultLargeAsset []byte

func init() { defaultAssets[DefaultLarge] = defaultLargeAsset }
