// Package avatar builds the illustrated avatar gallery and stores uploaded
// profile photos.
//
// Uploaded photos are normalized to a JPEG no larger than MaxDimension on
// either side and written under ObjectKey. The session keeps only the key;
// ResolveURL turns it back into a loadable URL.
package avatar
