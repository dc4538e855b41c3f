// Package llmrank reranks documents against a query by asking a language
// model how relevant each one is.
//
// Every document gets exactly one score in [0,1]. Documents the backend
// could not judge (errors, timeouts, unparsable answers) get score 0 and
// a non-scored Outcome, so one bad document never breaks a ranking.
//
// The backend is any OpenAI-compatible chat completions endpoint: OpenAI,
// Ollama, vLLM. Without WithBackend the client resolves one from the
// environment (LLMRANK_BASE_URL, OPENAI_API_KEY, OLLAMA_HOST) and finally
// tries a local Ollama.
//
//	client, err := llmrank.New(ctx,
//	    llmrank.WithModel("llama3.1:8b"),
//	    llmrank.WithConcurrency(4),
//	    llmrank.WithPreserveOrder(),
//	)
//	if err != nil { ... }
//	defer client.Close()
//
//	stream := client.Score(ctx, "reset password", slices.Values(docs))
//	for r := range stream.All() {
//	    fmt.Println(r.Position, r.Score, r.Outcome)
//	}
//	if err := stream.Err(); err != nil { ... }
//
// Check Available before a batch job to skip it cleanly when the backend is down.
package llmrank
