// Package imagefx speaks the two tRPC procedures of the ImageFX web API:
// media.fetchUserHistory for cursor-paginated history listing and
// media.fetchMedia for a single item's base64 image and prompt.
//
// Requests go through a Sender, normally a *transport.Client carrying the
// user's cookie bundle. This package never inspects credentials.
package imagefx
