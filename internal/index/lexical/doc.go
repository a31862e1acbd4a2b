// Package lexical implements the in-memory inverted index used for
// full-text queries over cached documents. Postings are positional so
// phrase queries can be answered, and a document's posting set is
// swapped atomically so concurrent readers never see a partial update.
package lexical
