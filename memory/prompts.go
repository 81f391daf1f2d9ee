package memory

// batchSummarizeDailyPrompt instructs the daily batch call to produce one
// third-person summary per active user, honoring the embedding convention
// the conversation formatter renders attachment/link descriptions under.
const batchSummarizeDailyPrompt = `Analyze the provided chat messages and create concise daily summaries for each active user.

For each user, focus on:
- Notable events or experiences they mentioned
- Their mood and emotional state
- Important interactions and topics they discussed
- Behavioral patterns they exhibited
- Information revealed about them through their messages or messages from others

Embeddings in messages:
- Messages may contain <embedding type="image"> tags with descriptions of images that users posted
- These descriptions should be treated as if you saw the images yourself
- Messages may contain <embedding type="article"> tags with article content that users shared
- Include relevant details from shared images and articles when summarizing user behavior or interests

Keep each summary in the third person.
Return one summary per active user, keyed by user id.`

// mergeContextPrompt instructs the merge call to fuse long-term facts with
// the rolling daily-summary window into one narrative.
const mergeContextPrompt = `Merge the factual memory with daily summaries from the past week for the user.

Guidelines:
- Prioritize factual information for accuracy
- Preserve specific events and conversations from recent days
- Identify patterns across the full week while maintaining detail
- Resolve conflicts intelligently, favoring factual data then more recent summaries
- Provide unified context with rich recent memory for personalized conversation`
