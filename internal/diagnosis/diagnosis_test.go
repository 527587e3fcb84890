package diagnosis

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fundus-go/internal/dataset"
	"fundus-go/internal/intake"
)

func flags(active ...string) map[string]int {
	m := make(map[string]int, len(dataset.Conditions))
	for _, c := range dataset.Conditions {
		m[c] = 0
	}
	for _, c := range active {
		m[c] = 1
	}
	return m
}

func images(side intake.Side, names ...string) []intake.IndexedImage {
	out := make([]intake.IndexedImage, len(names))
	for i, n := range names {
		idx, _ := intake.ExtractIndex(n)
		out[i] = intake.IndexedImage{Index: idx, Name: n, Payload: intake.Payload{Format: "png", DataURL: "data:image/png;base64," + string(side)}}
	}
	return out
}

func TestCanonicalPair(t *testing.T) {
	l, r := CanonicalPair(12)
	assert.Equal(t, "12_left.jpg", l)
	assert.Equal(t, "12_right.jpg", r)
}

func TestDiseaseOf(t *testing.T) {
	assert.Equal(t, Unknown, DiseaseOf(dataset.Row{Flags: flags()}))
	assert.Equal(t, "糖尿病,高血压", DiseaseOf(dataset.Row{Flags: flags(dataset.ConditionHypertension, dataset.ConditionDiabetes)}))
}

func TestMatch_CataractScenario(t *testing.T) {
	table := dataset.NewTable("mem", []dataset.Row{
		{LeftFilename: "0_left.jpg", RightFilename: "0_right.jpg", Flags: flags(dataset.ConditionCataract)},
	})
	m := NewMatcher(table)

	left := images(intake.SideLeft, "0_left.png")
	right := images(intake.SideRight, "0_right.png")
	matches, err := m.Match(left, right)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.True(t, matches[0].Matched)
	assert.Equal(t, "白内障", matches[0].Disease)

	advice := Advise(matches[0].Disease)
	assert.Contains(t, advice, "白内障诊疗建议")
	for _, other := range []string{"糖尿病视网膜病变", "青光眼诊疗建议", "未知疾病诊疗建议", "检查结果正常"} {
		assert.NotContains(t, advice, other)
	}

	records, err := Assemble(left, right, matches, []string{advice})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "患者 1", records[0].DisplayName)
	assert.Equal(t, "白内障", records[0].CombinedDiagnosis.PrimaryDisease)
	assert.Equal(t, records[0].LeftEye.Disease, records[0].RightEye.Disease)
	assert.Equal(t, "0_left.png", records[0].LeftEye.Name)
}

func TestMatch_MissingSlotIsUnknown(t *testing.T) {
	table := dataset.NewTable("mem", []dataset.Row{
		{LeftFilename: "0_left.jpg", RightFilename: "0_right.jpg", Flags: flags(dataset.ConditionGlaucoma)},
	})
	matches, err := NewMatcher(table).Match(
		images(intake.SideLeft, "0_left.jpg", "1_left.jpg"),
		images(intake.SideRight, "0_right.jpg", "1_right.jpg"),
	)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "青光眼", matches[0].Disease)
	assert.False(t, matches[1].Matched)
	assert.Equal(t, Unknown, matches[1].Disease)
	assert.True(t, strings.HasPrefix(Advise(matches[1].Disease), "未知疾病诊疗建议"))
}

func TestMatch_KeyedBySlotNotParsedIndex(t *testing.T) {
	table := dataset.NewTable("mem", []dataset.Row{
		{LeftFilename: "0_left.jpg", RightFilename: "0_right.jpg", Flags: flags(dataset.ConditionAMD)},
		{LeftFilename: "7_left.jpg", RightFilename: "7_right.jpg", Flags: flags(dataset.ConditionMyopia)},
	})
	matches, err := NewMatcher(table).Match(
		images(intake.SideLeft, "7_left.jpg"),
		images(intake.SideRight, "7_right.jpg"),
	)
	require.NoError(t, err)
	assert.Equal(t, "0_left.jpg", matches[0].LeftFilename)
	assert.Equal(t, "AMD", matches[0].Disease)
}

func TestMatch_CountMismatch(t *testing.T) {
	_, err := NewMatcher(nil).Match(images(intake.SideLeft, "0_left.jpg"), nil)
	assert.ErrorIs(t, err, ErrCountMismatch)

	_, err = Assemble(images(intake.SideLeft, "0_left.jpg"), images(intake.SideRight, "0_right.jpg"), nil, nil)
	assert.ErrorIs(t, err, ErrCountMismatch)
}

func TestMatch_EmptyTableDegrades(t *testing.T) {
	matches, err := NewMatcher(dataset.Empty("")).Match(
		images(intake.SideLeft, "0_left.jpg", "1_left.jpg"),
		images(intake.SideRight, "0_right.jpg", "1_right.jpg"),
	)
	require.NoError(t, err)
	for _, m := range matches {
		assert.Equal(t, Unknown, m.Disease)
	}
}

func TestLookupByName(t *testing.T) {
	table := dataset.NewTable("mem", []dataset.Row{
		{LeftFilename: "3_left.jpg", RightFilename: "3_right.jpg", Flags: flags(dataset.ConditionNormal)},
	})
	m := NewMatcher(table)

	disease, ok := m.LookupByName(" 3_LEFT.png", intake.SideLeft)
	require.True(t, ok)
	assert.Equal(t, "正常", disease)

	_, ok = m.LookupByName("3_left.png", intake.SideRight)
	assert.False(t, ok)
	_, ok = m.LookupByName("", intake.SideLeft)
	assert.False(t, ok)
}

func TestAdvise(t *testing.T) {
	// 每个词都追加一段，保持顺序且不去重
	got := Advise("高血压,高血压,糖尿病")
	blocks := strings.Split(strings.TrimSuffix(got, "\n\n"), "\n\n")
	require.Len(t, blocks, 3)
	assert.True(t, strings.HasPrefix(blocks[0], "高血压视网膜病变诊疗建议："))
	assert.Equal(t, blocks[0], blocks[1])
	assert.True(t, strings.HasPrefix(blocks[2], "糖尿病视网膜病变诊疗建议："))

	assert.True(t, strings.HasPrefix(Advise("AMD"), "年龄相关性黄斑变性（AMD）诊疗建议："))
	assert.True(t, strings.HasPrefix(Advise("近视"), "高度近视视网膜病变诊疗建议："))
	assert.True(t, strings.HasPrefix(Advise("其他疾病/异常"), "其他眼部异常诊疗建议："))
	assert.True(t, strings.HasPrefix(Advise("正常"), "检查结果正常："))
	assert.True(t, strings.HasPrefix(Advise(""), "未知疾病诊疗建议："))
	assert.True(t, strings.HasSuffix(Advise("正常"), "6. 警惕突发视力变化及时就医\n\n"))

	// 纯函数
	assert.Equal(t, Advise("白内障,青光眼"), Advise("白内障,青光眼"))
}

func TestAdviceGenerator(t *testing.T) {
	g := NewAdviceGenerator(5 * time.Millisecond)
	text, err := g.Generate(context.Background(), "青光眼")
	require.NoError(t, err)
	assert.Equal(t, Advise("青光眼"), text)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewAdviceGenerator(time.Hour).Generate(ctx, "青光眼")
	assert.ErrorIs(t, err, context.Canceled)

	text, err = NewAdviceGenerator(0).Generate(context.Background(), Unknown)
	require.NoError(t, err)
	assert.Equal(t, Advise(Unknown), text)
}
