package extract

const extractionSystemPrompt = "你负责从农业文本中系统地抽取实体关系。"

// extractionPromptTemplate takes the paragraph text
const extractionPromptTemplate = `你是植物病害领域的专家。请只抽取与植物病害直接相关的三元组。

【抽取范围】
- 病原物与寄主植物之间的侵染或危害关系
- 病害症状在植物部位上的表现
- 病害发生发展的规律及环境条件的影响
- 防治措施及其效果
- 品种的抗病性

【不要抽取】
- 与病害无关的栽培管理或农业技术
- 与病害无关的生理过程和环境因素

【关系模式】
- [病原]→[侵染/危害]→[寄主部位]
- [环境条件]→[影响]→[病害发展]
- [植物部位]→[表现]→[病征]
- [防治方法]→[防治/控制]→[病害]
- [品种]→[抗性]→[病害]

【输出格式】
- 只输出一个JSON数组：[["主语","谓语","宾语"], ...]
- 谓语使用准确的病害动词，如危害、侵染、导致、表现、防治、抗性
- 没有符合条件的关系时输出 []

【示例】
文本："稻瘟病侵染叶片导致褐斑，苯醚甲环唑可有效防治"
输出：[["稻瘟病","侵染","叶片"],["叶片","表现","褐斑"],["苯醚甲环唑","防治","稻瘟病"]]

文本："合理灌溉促进水稻生长"
输出：[]

请从以下文本中抽取病害相关三元组：
"%s"`
