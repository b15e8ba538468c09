package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yungbote/medscribe-backend/internal/domain"
	"github.com/yungbote/medscribe-backend/internal/platform/logger"
)

// LLM is the structured-output surface the nodes depend on.
type LLM interface {
	GenerateJSON(ctx context.Context, system string, user string, schemaName string, schema map[string]any) (json.RawMessage, error)
}

// Retriever answers nearest-neighbor queries over the vector index.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]domain.IndexedDoc, error)
}

// FallbackMessage is the fixed reply when no retrieved document survives
// grading.
const FallbackMessage = "I'm sorry, I couldn't find any relevant information to answer your question. Can you please provide more details."

const schemaInstruction = "Return the result strictly following the JSON schema."

const rewriterPrompt = `You are an intelligent query interpreter for a medical retrieval augmented system.
Your job is to:
    1. Analyze the user question.
    2. Decide if the query needs to use code:
        - "tool" -> if the question needs filtering, counting, comparison, or listing (e.g. "which patients", "how many", "most frequent", "list all", "find who")
    3. Rewrite the question in a clear and specific way for downstream nodes.
        - Expand pronouns or vague references using memory if provided.
        - Keep the meaning identical.

You will be given:
    - The user's question
    - Optional memory context from the last few chats.
---

Memory Context:
%s

User Question:
%s`

const graderPrompt = `Evaluate whether a retrieved document is relevant to the user's question.
The grader determines if the document helps answer the question or not.

ROLE
    - You are a retrieval grader that assesses the relevance of a document to a user's question.

INPUTS
    - "question": The user's query.
    - "document": The retrieved document content.

TASK
    - Determine if the document contains information that directly answers or helps answer the question.

RULES
    - If the document is relevant, respond "Yes".
    - If not, respond "No".
    - Respond with exactly one word: "Yes" or "No".
    - Do not include any explanations or reasoning.

USER QUESTION:
    %s

DOCUMENT CONTENT:
    %s`

const generationPrompt = `ROLE
    - You are an expert AI answer generator for a medical Retrieval-Augmented Generation system.
    - Your job is to create accurate, clear, and context-grounded answers based on retrieved documents.

TASK
    - Generate outputs:
        1. answer: A well-written, human-friendly response to display to the user.

RULES
    - Base your answer only on the given documents; do not hallucinate missing details.
    - Use neutral, professional language.
    - Avoid repetition and unnecessary elaboration.

USER QUESTION:
%s

RELEVANT DOCUMENTS:
%s`

var queryRewriteSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"rephrased_question": map[string]any{
			"type":        "string",
			"description": "Self-contained rewrite of the user question with pronouns resolved.",
		},
		"tool_flag": map[string]any{
			"type":        "boolean",
			"description": "True when the question needs filtering, counting, comparison, or listing.",
		},
	},
	"required":             []string{"rephrased_question", "tool_flag"},
	"additionalProperties": false,
}

var docGraderSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"score": map[string]any{
			"type":        "string",
			"description": "Exactly \"Yes\" or \"No\".",
		},
	},
	"required":             []string{"score"},
	"additionalProperties": false,
}

var answerGenerationSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"answer": map[string]any{
			"type":        "string",
			"description": "The final answer grounded in the relevant documents.",
		},
	},
	"required":             []string{"answer"},
	"additionalProperties": false,
}

// Nodes holds the node implementations plus their shared collaborators.
type Nodes struct {
	log       *logger.Logger
	llm       LLM
	retriever Retriever
	topK      int
	maxChats  int
}

func NewNodes(log *logger.Logger, llm LLM, retriever Retriever, topK, maxChats int) (*Nodes, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if llm == nil {
		return nil, fmt.Errorf("llm required")
	}
	if retriever == nil {
		return nil, fmt.Errorf("retriever required")
	}
	if topK < 1 {
		topK = 1
	}
	if maxChats < 1 {
		maxChats = DefaultMaxChats
	}
	return &Nodes{
		log:       log.With("service", "AgentNodes"),
		llm:       llm,
		retriever: retriever,
		topK:      topK,
		maxChats:  maxChats,
	}, nil
}

// BuildGraph wires the nodes into the compiled agent flow.
func (n *Nodes) BuildGraph() (*Graph, error) {
	return NewBuilder().
		AddNode(NodeQueryRewriter, n.QueryRewriter).
		AddNode(NodeDocRetriever, n.DocRetriever).
		AddNode(NodeDocGrader, n.DocGrader).
		AddNode(NodeAnswerGeneration, n.AnswerGeneration).
		AddNode(NodeFallbackAgent, n.FallbackAgent).
		SetEntry(NodeQueryRewriter).
		AddEdge(NodeQueryRewriter, NodeDocRetriever).
		AddEdge(NodeDocRetriever, NodeDocGrader).
		AddConditionalEdges(NodeDocGrader, NoRelevantDocs, map[string]NodeID{
			RouteGenerateAnswer: NodeAnswerGeneration,
			RouteFallback:       NodeFallbackAgent,
		}).
		AddEdge(NodeAnswerGeneration, End).
		AddEdge(NodeFallbackAgent, End).
		Compile()
}

// QueryRewriter resets the transient fields and rewrites the user query
// into a self-contained question. When the LLM fails it degrades to the raw
// query instead of failing the invocation.
func (n *Nodes) QueryRewriter(ctx context.Context, s *State) error {
	s.RephrasedQuestion = ""
	s.ToolFlag = false
	s.GeneratedAnswer = ""
	if s.Conversation == nil {
		s.Conversation = RecentChats{}
	}

	prompt := fmt.Sprintf(rewriterPrompt, renderMemoryContext(s.Conversation), s.UserQuery)
	raw, err := n.llm.GenerateJSON(ctx, prompt, schemaInstruction, "query_rewrite", queryRewriteSchema)
	if err != nil {
		n.log.Warn("Query rewriter failed, using raw query", "error", err)
		s.RephrasedQuestion = s.UserQuery
		s.ToolFlag = false
		return nil
	}

	var out struct {
		RephrasedQuestion string `json:"rephrased_question"`
		ToolFlag          bool   `json:"tool_flag"`
	}
	if err := json.Unmarshal(raw, &out); err != nil || strings.TrimSpace(out.RephrasedQuestion) == "" {
		n.log.Warn("Query rewriter returned unusable output, using raw query", "error", err)
		s.RephrasedQuestion = s.UserQuery
		s.ToolFlag = false
		return nil
	}

	s.RephrasedQuestion = out.RephrasedQuestion
	s.ToolFlag = out.ToolFlag
	return nil
}

// DocRetriever fetches the nearest documents for the rephrased question.
// An empty result is a valid outcome; the grader handles it.
func (n *Nodes) DocRetriever(ctx context.Context, s *State) error {
	docs, err := n.retriever.Retrieve(ctx, s.RephrasedQuestion, n.topK)
	if err != nil {
		return fmt.Errorf("retrieve documents: %w", err)
	}
	s.Documents = docs
	return nil
}

// DocGrader keeps only the documents the LLM judges relevant and records
// whether generation should proceed.
func (n *Nodes) DocGrader(ctx context.Context, s *State) error {
	relevant := make([]domain.IndexedDoc, 0, len(s.Documents))
	for _, doc := range s.Documents {
		prompt := fmt.Sprintf(graderPrompt, s.RephrasedQuestion, doc.Content)
		raw, err := n.llm.GenerateJSON(ctx, prompt, schemaInstruction, "doc_grader", docGraderSchema)
		if err != nil {
			return fmt.Errorf("grade document %s: %w", doc.Metadata.SourceFile, err)
		}
		var out struct {
			Score string `json:"score"`
		}
		if err := json.Unmarshal(raw, &out); err != nil {
			return fmt.Errorf("grade document %s: %w", doc.Metadata.SourceFile, err)
		}
		if strings.EqualFold(strings.TrimSpace(out.Score), "yes") {
			relevant = append(relevant, doc)
		}
	}
	s.Documents = relevant
	s.ProceedToGenerate = len(relevant) > 0
	return nil
}

// AnswerGeneration answers the rephrased question from the retained
// documents only, then commits the turn to conversation memory.
func (n *Nodes) AnswerGeneration(ctx context.Context, s *State) error {
	prompt := fmt.Sprintf(generationPrompt, s.RephrasedQuestion, renderDocuments(s.Documents))
	raw, err := n.llm.GenerateJSON(ctx, prompt, schemaInstruction, "answer_generation", answerGenerationSchema)
	if err != nil {
		return fmt.Errorf("generate answer: %w", err)
	}
	var out struct {
		Answer string `json:"answer"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("generate answer: %w", err)
	}

	s.GeneratedAnswer = out.Answer
	s.Conversation = UpdateRecentChats(s.Conversation, s.RephrasedQuestion, out.Answer, n.maxChats)
	return nil
}

// FallbackAgent replies with the fixed apology. The turn is deliberately
// not remembered, so an ungrounded exchange cannot poison later rewrites.
func (n *Nodes) FallbackAgent(_ context.Context, s *State) error {
	s.GeneratedAnswer = FallbackMessage
	return nil
}

func renderMemoryContext(rc RecentChats) string {
	if len(rc) == 0 {
		return "{}"
	}
	raw, err := json.Marshal(rc)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

func renderDocuments(docs []domain.IndexedDoc) string {
	if len(docs) == 0 {
		return "(none)"
	}
	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		parts = append(parts, fmt.Sprintf("[source: %s]\n%s", doc.Metadata.SourceFile, doc.Content))
	}
	return strings.Join(parts, "\n\n")
}
