package agent

import (
	"context"
	"strings"
	"time"

	"github.com/caflow/caflow/model"
)

const advisorySystemPrompt = `You are a chartered accountancy assistant for Indian businesses.
Answer questions about GST, income tax, compliance deadlines, bookkeeping and
financial reporting. Be concise and note when professional review is advised.`

// AdvisoryAgent answers free-form questions. With a chat model wired
// it consults the model; without one it falls back to canned topic
// guidance so the workflow stays total.
type AdvisoryAgent struct {
	chat model.ChatModel
}

func NewAdvisoryAgent(chat model.ChatModel) *AdvisoryAgent {
	return &AdvisoryAgent{chat: chat}
}

func (a *AdvisoryAgent) Name() string { return "advisory" }

func (a *AdvisoryAgent) Execute(ctx context.Context, in Input) (Output, error) {
	if _, err := in.OrgID(); err != nil {
		return nil, err
	}
	question := in.String("question")
	if question == "" {
		question = in.String("message")
	}

	answer, source := a.answer(ctx, question)

	return Output{
		"question":  question,
		"answer":    answer,
		"source":    source,
		"timestamp": time.Now().Format(time.RFC3339),
	}, nil
}

func (a *AdvisoryAgent) answer(ctx context.Context, question string) (string, string) {
	if a.chat != nil {
		answer, err := a.chat.Complete(ctx, advisorySystemPrompt, question)
		if err == nil && answer != "" {
			return answer, "model"
		}
	}
	return topicGuidance(question), "template"
}

func topicGuidance(question string) string {
	q := strings.ToLower(question)
	switch {
	case strings.Contains(q, "gst"):
		return "GST returns are filed monthly: GSTR-1 by the 11th and GSTR-3B by the 20th of the following month. Input tax credit can be claimed against matched purchase invoices."
	case strings.Contains(q, "tds"):
		return "TDS must be deposited by the 7th of the following month and quarterly returns filed in forms 24Q/26Q. Late deposit attracts interest under Section 201."
	case strings.Contains(q, "advance tax"):
		return "Advance tax is payable in four installments: 15% by 15 June, 45% by 15 September, 75% by 15 December and 100% by 15 March."
	case strings.Contains(q, "itr") || strings.Contains(q, "income tax"):
		return "Income tax returns for businesses are generally due by 31 July, or 31 October when a tax audit applies. Keep books reconciled before computing taxable income."
	case q == "":
		return "Tell me what you need help with: posting entries, reconciling a bank statement, GST or income tax computation, compliance deadlines, or a financial report."
	default:
		return "I can help with bookkeeping, reconciliation, GST and income tax computation, compliance deadlines and financial reports. Could you share more detail about your question?"
	}
}
