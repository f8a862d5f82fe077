//go:build bpe_default_medium

package tokenizer

import _ "embed"

//go:embed assets/multi.wiki.bpe.vs320000.vocab.lz4
var defaultMediumAsset []byte

func init() { defaultAssets[DefaultMedium] = defaultMediumAsset }
