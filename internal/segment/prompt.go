package segment

const judgeSystemPrompt = "你是农业病害文本的结构分析专家，负责判断句子是否属于同一段落。"

// judgePromptTemplate takes the open paragraph and the candidate sentence
const judgePromptTemplate = `请判断下面的句子是否延续当前段落。

当前段落：%s
待判断句子：%s

判断规则：
1. 句子是新的章节标题（如"一、"、"（二）"、"第三章"）时，回答False
2. 句子以数字编号或列表符号开头时，回答False
3. 句子的主题与当前段落明显不同时，回答False
4. 句子是当前段落技术细节的延续时，回答True

只回答True或False，不要输出任何解释。`
