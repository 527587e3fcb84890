package diagnosis

import (
	"context"
	"strings"
	"time"
)

// adviceRule 关键词命中时追加的建议段落
type adviceRule struct {
	keyword string
	text    string
}

// 顺序即优先级：一个词只取第一条命中的规则
var adviceRules = []adviceRule{
	{"糖尿病", `糖尿病视网膜病变诊疗建议：
1. 严格控制血糖：目标空腹血糖4.4-7.0mmol/L，餐后血糖<10mmol/L
2. 血压控制：目标<130/80mmHg
3. 血脂管理：LDL-C<2.6mmol/L
4. 定期眼科随访
5. 戒烟限酒，健康饮食，适量运动
6. 每年至少一次全面眼科检查`},
	{"青光眼", `青光眼诊疗建议：
1. 开始降眼压治疗
2. 定期视野检查
3. 避免长时间暗环境活动
4. 避免使用散瞳药物
5. 告知家属青光眼遗传风险，建议40岁以上亲属筛查`},
	{"白内障", `白内障诊疗建议：
1. 根据情况考虑手术治疗或继续观察
2. 视力矫正：配戴合适眼镜改善视力
3. 强光下佩戴防紫外线太阳镜
4. 控制糖尿病等全身性疾病
5. 补充抗氧化营养素（维生素C/E,叶黄素等）
6. 避免长期使用糖皮质激素眼药水`},
	{"AMD", `年龄相关性黄斑变性（AMD）诊疗建议：
1. 定期专科随访
2. 补充AREDS2配方维生素（维生素C/E,锌,铜,叶黄素,玉米黄质）
3. 戒烟（吸烟使风险增加2-4倍）
4. 佩戴防紫外线太阳镜
5. 使用Amsler方格表自我监测
6. 控制血压血脂，地中海饮食`},
	{"高血压", `高血压视网膜病变诊疗建议：
1. 严格控制血压：目标<130/80mmHg
2. 定期监测血压
3. 低盐饮食（每日钠<2g）
4. 控制血脂血糖
5. 戒烟限酒
6. 定期眼科检查`},
	{"近视", `高度近视视网膜病变诊疗建议：
1. 定期散瞳眼底检查
2. 避免剧烈运动（拳击、跳水等）
3. 控制近视进展：户外活动每天2小时，合理用眼
4. 警惕视网膜脱离症状（闪光感、飞蚊症突然增加）
5. 配戴合适矫正眼镜或考虑屈光手术
6. 补充叶黄素保护视网膜`},
	{"其他疾病/异常", `其他眼部异常诊疗建议：
1. 详细眼科专科检查明确诊断
2. 及时眼科就诊
3. 记录症状变化（视力、疼痛、视野缺损等）
4. 避免自行使用眼药水
5. 保护眼睛避免外伤
6. 根据最终诊断制定个体化治疗方案`},
	{"正常", `检查结果正常：
1. 常规眼科检查建议：
   - 40岁以下：每2-4年一次
   - 40-54岁：每1-3年一次
   - 55-64岁：每1-2年一次
   - 65岁以上：每年一次
2. 保持健康用眼习惯：
   - 20-20-20法则（每20分钟看20英尺外20秒）
   - 阅读距离保持30cm以上
3. 均衡饮食：多摄入深色蔬菜、鱼类
4. 佩戴防紫外线太阳镜
5. 控制屏幕时间，保证充足睡眠
6. 警惕突发视力变化及时就医`},
}

const unknownAdvice = `未知疾病诊疗建议：
1. 建议尽快至眼科专科就诊明确诊断
2. 记录详细症状（发病时间、诱因、伴随症状）
3. 避免自行用药
4. 保护眼睛避免外伤
5. 提供完整病史（全身疾病、用药史、家族史）
6. 可能需要进一步检查：OCT、眼底荧光造影、视野检查等`

const blockSeparator = "\n\n"

// AdviceBlock 单个病种词对应的建议段落（不含段尾空行）
func AdviceBlock(token string) string {
	for _, rule := range adviceRules {
		if strings.Contains(token, rule.keyword) {
			return rule.text
		}
	}
	return unknownAdvice
}

// Advise 按逗号拆分诊断，逐词追加建议段落，不去重
func Advise(disease string) string {
	var b strings.Builder
	for _, token := range strings.Split(disease, ",") {
		b.WriteString(AdviceBlock(token))
		b.WriteString(blockSeparator)
	}
	return b.String()
}

// AdviceGenerator 带展示用延迟的建议生成器，延迟不影响结果
type AdviceGenerator struct {
	delay time.Duration
}

// NewAdviceGenerator 创建建议生成器，delay 为 0 时立即返回
func NewAdviceGenerator(delay time.Duration) *AdviceGenerator {
	return &AdviceGenerator{delay: delay}
}

// Generate 等待展示延迟后返回 Advise 的结果，ctx 取消时提前返回
func (g *AdviceGenerator) Generate(ctx context.Context, disease string) (string, error) {
	if g != nil && g.delay > 0 {
		timer := time.NewTimer(g.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return "", err
	}
	return Advise(disease), nil
}
