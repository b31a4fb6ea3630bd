package consensus

const mergeSystemPrompt = "你是一位专业的农业病害知识抽取专家。"

// mergePromptTemplate takes the paragraph text and the formatted candidates
const mergePromptTemplate = `请结合原始文本和多个模型抽取的三元组，给出最终准确的三元组列表。

【原始文本】
%s

【各模型抽取结果】
%s

【要求】
1. 综合比较所有模型的结果
2. 保留准确反映原文信息的三元组
3. 合并含义相同但表述不同的三元组
4. 删除错误或重复的三元组
5. 格式：[["主语","谓语","宾语"], ...]

直接输出最终的三元组JSON数组，不要包含任何解释：`

// emptyCandidatesMarker stands in for a backend that found nothing
const emptyCandidatesMarker = "未提取到三元组"
