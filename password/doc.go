// Package password hashes and verifies account passwords with Argon2id.
//
// Hashes use the PHC string form
//
//	$argon2id$v=19$m=<KiB>,t=<passes>,p=<lanes>$<salt>$<key>
//
// and Verify derives with the costs recorded in the hash, so raising the
// configured costs does not invalidate existing accounts. [Argon2.Check]
// applies the length policy alone so registration can reject a weak password
// before any store is touched.
package password
