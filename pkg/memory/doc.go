// Package memory persists free-text memories as markdown documents with YAML
// front matter, tracked by a line-oriented JSONL index and a vector index for
// similarity recall.
//
// Invariants:
// - A memory's file path is a deterministic function of its category,
//   subcategory and name.
// - The index holds exactly one record per live memory id.
// - The file, the index and the vector store are mutated independently;
//   mutating operations report which sub-stores they reached so drift can be
//   detected and repaired by Reconcile.
//
// Usage:
//
//	svc, _ := memory.NewService(memory.Config{BaseDir: "/data/memories", Vectors: vectors, Embedder: embedder})
//	defer svc.Close()
//	m, _, _ := svc.CreateMemory(ctx, memory.Draft{Category: "profiles", Subcategory: "basic", Name: "Adam", Text: "Adam likes sushi"})
//	out, _ := svc.Recall(ctx, []string{"what does Adam eat"})
//	_ = m
//	_ = out
package memory
