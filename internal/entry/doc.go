// Package entry defines the Sync Entry model: one record per tracked media
// item, holding the video and parameter upload statuses, the inference status,
// and the last raw response for each.
//
// Entries are values. Every mutation helper returns a new Entry and leaves its
// input untouched, so the store can replace records wholesale and coordinators
// never share a mutable copy. Identity derives from the media path's final
// segment; InferenceKey derives the server lookup key from that id.
package entry
