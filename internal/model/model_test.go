package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := map[string]SentenceKind{
		"一、病害概述":        KindSectionHeader,
		"十二．防治方法":       KindSectionHeader,
		"（三）化学防治":       KindSectionHeader,
		"(二) 农业防治":      KindSectionHeader,
		"第二章 稻瘟病":       KindSectionHeader,
		"1. 选用抗病品种。":    KindListItem,
		"12、合理密植。":      KindListItem,
		"3）及时排水。":       KindListItem,
		"① 分蘖末期施药。":     KindListItem,
		"● 清除病残体。":      KindListItem,
		"1.5倍浓度效果更好。":   KindNormal,
		"稻瘟病是水稻的重要病害。":  KindNormal,
		"一般在7月发病。":      KindNormal,
		"":              KindNormal,
	}
	for text, want := range tests {
		assert.Equal(t, want, Classify(text), text)
	}
}

func TestSentence_ForcesBreak(t *testing.T) {
	assert.True(t, NewSentence("二、发病条件").ForcesBreak())
	assert.True(t, NewSentence("2. 合理施肥。").ForcesBreak())
	assert.False(t, NewSentence("气温较高时发病重。").ForcesBreak())
	assert.Equal(t, "section_header", KindSectionHeader.String())
}

func TestParagraph_Text(t *testing.T) {
	p := Paragraph{Sentences: []string{"稻瘟病侵染叶片导致褐斑。", "苯醚甲环唑可有效防治。"}}
	assert.Equal(t, "稻瘟病侵染叶片导致褐斑。 苯醚甲环唑可有效防治。", p.Text())
	assert.Equal(t, []string{p.Text()}, ParagraphTexts([]Paragraph{p}))
}

func TestTriplet_UnmarshalStrict(t *testing.T) {
	var tr Triplet
	require.NoError(t, json.Unmarshal([]byte(`["稻瘟病","危害部位","叶片"]`), &tr))
	assert.Equal(t, NewTriplet("稻瘟病", "危害部位", "叶片"), tr)

	for _, bad := range []string{
		`["稻瘟病","危害部位"]`,
		`["a","b","c","d"]`,
		`["a","b",null]`,
		`["a","b",3]`,
		`{"subject":"a"}`,
		`"a,b,c"`,
	} {
		before := tr
		assert.Error(t, json.Unmarshal([]byte(bad), &tr), bad)
		assert.Equal(t, before, tr, "failed decode must not modify the triplet")
	}
}

func TestSourceModels_KeepBackendOrder(t *testing.T) {
	sources := SourceModels{
		{Name: "Qwen", Triplets: []Triplet{{"稻瘟病", "侵染", "叶片"}}},
		{Name: "Llama"},
		{Name: "Gemma", Triplets: []Triplet{{"苯醚甲环唑", "防治", "稻瘟病"}}},
	}

	data, err := json.Marshal(sources)
	require.NoError(t, err)
	assert.Equal(t, `{"Qwen":[["稻瘟病","侵染","叶片"]],"Llama":[],"Gemma":[["苯醚甲环唑","防治","稻瘟病"]]}`, string(data))

	var decoded SourceModels
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, []string{"Qwen", "Llama", "Gemma"}, decoded.Names())

	llama, ok := decoded.Get("Llama")
	require.True(t, ok)
	assert.NotNil(t, llama)
	assert.Empty(t, llama)

	_, ok = decoded.Get("Mistral")
	assert.False(t, ok)
}

func TestConsensusRecord_EmptyCollections(t *testing.T) {
	data, err := json.Marshal(ConsensusRecord{Text: "无有效信息。"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"无有效信息。","consensus_triplets":[],"source_models":{}}`, string(data))

	data, err = json.Marshal(BackendResult{Text: "无有效信息。"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"无有效信息。","triplets":[]}`, string(data))
}

func TestCountTriplets(t *testing.T) {
	records := []ConsensusRecord{
		{ConsensusTriplets: []Triplet{{"a", "b", "c"}, {"d", "e", "f"}}},
		{},
	}
	assert.Equal(t, 2, CountTriplets(records))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.Len(t, cfg.Extraction.Backends, 3)
	assert.Equal(t, "Qwen", cfg.Extraction.Backends[0].Name)
	assert.Equal(t, DefaultBaseURL, cfg.LLM.BaseURL)
	assert.Equal(t, 3, cfg.Segmentation.Options.MaxTokens)
}

func TestIsReservedBackendName(t *testing.T) {
	for _, name := range []string{"consensus", "Consensus", " consensus ", "*"} {
		assert.True(t, IsReservedBackendName(name), name)
	}
	for _, name := range []string{"Qwen", "consensus-llama", ""} {
		assert.False(t, IsReservedBackendName(name), name)
	}
}
