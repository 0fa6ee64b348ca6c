package ai

// SystemPrompts holds the built-in model instructions, one per operation.
type SystemPrompts struct {
	ExtractSignals   string
	ProcessBullets   string
	CheckConsistency string
}

// UserPrompts holds the built-in request templates. Each template carries
// fmt placeholders the operation fills with job and bullet content.
type UserPrompts struct {
	ExtractSignals   string
	ProcessBullets   string
	CheckConsistency string
}

// DefaultSystemPrompts is the fallback instruction set, used when neither a
// prompt file nor inline config supplies one.
var DefaultSystemPrompts = SystemPrompts{
	ExtractSignals: `You are an expert at analyzing job descriptions and extracting key competencies, skills, and keywords.

Your task is to extract the most important terms that an ATS (Applicant Tracking System) would look for when matching a resume to this job description.

Prioritize:
1. Technical skills and tools
2. Domain expertise and certifications
3. Core competencies and soft skills
4. Industry-specific terminology

Group related terms and provide synonyms to improve matching flexibility.`,

	ProcessBullets: `You are an expert resume editor. Rewrite bullets and score them in one pass.

CORE PHILOSOPHY: You are EDITING, not writing from scratch. Preserve factual accuracy above all else.

CRITICAL RULES TO PREVENT FABRICATION:

1. METRICS RULE: Only use metrics provided for THIS SPECIFIC BULLET. Never borrow from other bullets.

2. TOOLS/PLATFORMS RULE: Only mention tools if they appear in the original bullet. Adding new tool names is fabrication.

3. ACTIVITIES RULE: Preserve the core activity. If they did "user research," don't rewrite it as "marketing campaigns."

4. WHEN IN DOUBT: Favor accuracy over keyword optimization. A factually correct bullet with fewer keywords beats a keyword-stuffed fabrication.

Focus on:
- Using active voice and strong action verbs
- Incorporating relevant keywords from the job description naturally
- Quantifying impact where the original provides numbers
- Improving clarity and conciseness`,

	CheckConsistency: `You are a fact-checker ensuring resume edits don't fabricate information.

You compare an original bullet against its revision and flag:
1. Overclaims: exaggerated or embellished content
2. Inventions: tools, metrics, or achievements absent from the original
3. Incorrect attribution: facts borrowed from elsewhere

Flag issues precisely; never invent violations that are not clearly present.`,
}

// DefaultUserPrompts is the fallback template set, resolved with the same
// precedence as the system prompts.
var DefaultUserPrompts = UserPrompts{
	ExtractSignals: `Extract and categorize ALL job description keywords from the following job description.

Guidelines:
- topTerms: Up to 25 most important keywords/phrases, most important first
- weights: Importance score 0.0-1.0 per term (1.0 = must-have, 0.5 = nice-to-have)
- synonyms: Alternative terms that mean the same thing
- themes: Group related terms (e.g., "Technical Skills", "Soft Skills")

CATEGORIZE ALL KEYWORDS into three types:

1. softSkills: ALL transferable competencies mentioned that can be inferred from work
   Examples (not exhaustive): analytical thinking, problem-solving, communication,
   adaptability, collaboration, attention to detail, stakeholder management

2. hardTools: ALL specific tools/platforms/technologies mentioned (factual claims)
   Examples (not exhaustive): Marketo, Salesforce, Google Analytics, Figma,
   Tableau, PostgreSQL, Kubernetes

3. domainTerms: ALL industry/context terminology mentioned
   Examples (not exhaustive): B2B healthcare, SaaS, multi-channel campaigns,
   demand generation, patient engagement

IMPORTANT:
- Extract ALL keywords that fit each category, not just the examples
- If unsure, categorize conservatively (prefer hardTools over softSkills)
- Hard tools are verifiable facts - flag anything with a brand name or specific product

Job Description:
-----
%s
-----`,

	ProcessBullets: `Process these resume bullets for the role: %s

JD Keywords: %s
Soft Skills: %s
Hard Tools: %s
Domain Terms: %s

Writing Guidelines:
- Tone: %s
- Max words per variant: %d
- Variants per bullet: %d
- Use active voice and strong action verbs
- Incorporate relevant JD keywords naturally
- Quantify impact only with numbers already in the bullet
- Maintain factual accuracy

KEYWORD RULES:
1. SOFT SKILLS: If the work demonstrates a soft skill, weave it in naturally
2. HARD TOOLS: ONLY mention if in the original bullet - adding them is fabrication
3. DOMAIN TERMS: ADD ONLY if already in the original bullet or clearly implied by the extra context

Extra Context:
%s

Bullets to process (use bulletIndex to refer to them):
%s

Score each bullet's first variant on:
- relevance (0-100): How well it aligns with JD keywords/requirements
- impact (0-100): How impactful the outcomes/results are
- clarity (0-100): How clear and concise the writing is

Each variant needs a short rationale explaining what was preserved vs. adapted.`,

	CheckConsistency: `Compare these two resume bullets for factual consistency.

Original: "%s"
Revised:  "%s"
%s
Check for these FABRICATION TYPES:

1. HARD TOOLS: Specific platforms/tools in revised but NOT in original
   Examples: Marketo, Salesforce, Google Analytics, Figma, Tableau

2. ACTIVITY MISMATCH: Fundamental activity changed (e.g., design to marketing)

3. BORROWED METRICS: Numbers in revised that aren't in original

4. INVENTED FACTS: New companies, titles, or achievements not in original

If consistent, return isConsistent true with an empty violations array.`,
}
