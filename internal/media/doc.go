// Package media rehomes remote images referenced by post bodies.
//
// Resolution runs in three passes. A sequential planning pass assigns
// every distinct fetchable URL a local filename. A bounded pool then
// fetches each URL once into the media directory. A final sequential pass
// rewrites each body: fetched images point at ../media/<name>, every other
// image is removed. Merge order always follows the plan, never fetch
// completion order, so identical input yields identical output.
package media
