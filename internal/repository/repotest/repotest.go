// Package repotest builds small repositories for tests.
package repotest

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cvangysel/gondri/internal/indexer"
	"github.com/cvangysel/gondri/internal/indexer/trectext"
	"github.com/cvangysel/gondri/internal/repository"
	"github.com/cvangysel/gondri/pkg/logger"
)

// Corpus holds three documents: lorem, hamlet and romeo, in that order.
const Corpus = `<DOC>
<DOCNO>lorem</DOCNO>
<TEXT>
Lorem ipsum dolor sit amet, consectetur adipiscing elit. Duis in magna id urna lobortis tristique sed eget sem. Fusce fringilla nibh in tortor venenatis, eget laoreet metus luctus. Maecenas velit arcu, ullamcorper quis mauris ut, posuere consectetur nibh. Integer sodales mi consectetur arcu gravida porta. Cras maximus sapien non nisi cursus, sit amet sollicitudin tortor porttitor. Nulla scelerisque eu est at fringilla. Cras felis elit, cursus in efficitur a, varius id nisl. Morbi lorem nulla, ornare vitae porta eget, convallis vestibulum nulla. Integer vestibulum et sem ac scelerisque.
</TEXT>
</DOC>
<DOC>
<DOCNO>hamlet</DOCNO>
<TEXT>
ACT I  SCENE I. Elsinore. A platform before the castle.  FRANCISCO at his post. Enter to him BERNARDO BERNARDO Who's there? FRANCISCO Nay, answer me: stand, and unfold yourself. BERNARDO Long live the king! FRANCISCO Bernardo? BERNARDO He. FRANCISCO You come most carefully upon your hour. BERNARDO 'Tis now struck twelve; get thee to bed, Francisco. FRANCISCO For this relief much thanks: 'tis bitter cold, And I am sick at heart.
</TEXT>
</DOC>
<DOC>
<DOCNO>romeo</DOCNO>
<TEXT>
ACT I  PROLOGUE  Two households, both alike in dignity, In fair Verona, where we lay our scene, From ancient grudge break to new mutiny, Where civil blood makes civil hands unclean. From forth the fatal loins of these two foes A pair of star-cross'd lovers take their life; Whose misadventured piteous overthrows Do with their death bury their parents' strife. The fearful passage of their death-mark'd love, And the continuance of their parents' rage, Which, but their children's end, nought could remove, Is now the two hours' traffic of our stage; The which if you with patient ears attend, What here shall miss, our toil shall strive to mend. SCENE I. Verona. A public place.  Enter SAMPSON and GREGORY, of the house of Capulet, armed with swords and bucklers SAMPSON Gregory, o' my word, we'll not carry coals. GREGORY No, for then we should be colliers. SAMPSON I mean, an we be in choler, we'll draw. GREGORY Ay, while you live, draw your neck out o' the collar. SAMPSON I strike quickly, being moved. GREGORY But thou art not quickly moved to strike. SAMPSON A dog of the house of Montague moves me. GREGORY To move is to stir; and to be valiant is to stand: therefore, if thou art moved, thou runn'st away. SAMPSON A dog of that house shall move me to stand: I will take the wall of any man or maid of Montague's. GREGORY That shows thee a weak slave; for the weakest goes to the wall. SAMPSON True; and therefore women, being the weaker vessels, are ever thrust to the wall: therefore I will push Montague's men from the wall, and thrust his maids to the wall. GREGORY The quarrel is between our masters and us their men. SAMPSON 'Tis all one, I will show myself a tyrant: when I have fought with the men, I will be cruel with the maids, and cut off their heads. GREGORY The heads of the maids? SAMPSON Ay, the heads of the maids, or their maidenheads; take it in what sense thou wilt. GREGORY They must take it in sense that feel it. SAMPSON Me they shall feel while I am able to stand: and 'tis known I am a pretty piece of flesh. GREGORY 'Tis well thou art not fish; if thou hadst, thou hadst been poor John. Draw thy tool! here comes two of the house of the Montagues. SAMPSON My naked weapon is out: quarrel, I will back thee. GREGORY How! turn thy back and run? SAMPSON Fear me not. GREGORY No, marry; I fear thee! SAMPSON Let us take the law of our sides; let them begin. GREGORY I will frown as I pass by, and let them take it as they list. SAMPSON Nay, as they dare. I will bite my thumb at them; which is a disgrace to them, if they bear it. Enter ABRAHAM and BALTHASAR  ABRAHAM Do you bite your thumb at us, sir? SAMPSON I do bite my thumb, sir. ABRAHAM Do you bite your thumb at us, sir? SAMPSON [Aside to GREGORY] Is the law of our side, if I say ay? GREGORY No. SAMPSON No, sir, I do not bite my thumb at you, sir, but I bite my thumb, sir. GREGORY Do you quarrel, sir? ABRAHAM Quarrel sir! no, sir. SAMPSON If you do, sir, I am for you: I serve as good a man as you.
</TEXT>
</DOC>
`

// Build writes Corpus into a fresh temporary directory and returns it.
// Text is stored unless opts says otherwise through a non-zero value.
func Build(t testing.TB, opts indexer.Options) string {
	t.Helper()
	if opts == (indexer.Options{}) {
		opts = indexer.Options{StoreText: true, Workers: 2}
	}
	b, err := indexer.NewBuilder(opts, nil, logger.Discard())
	require.NoError(t, err)

	dir := t.TempDir()
	_, err = b.Build(context.Background(), dir, trectext.NewReader(strings.NewReader(Corpus), "toy"))
	require.NoError(t, err)
	return dir
}

// Open builds Corpus with stored text and opens it. The repository is
// closed when the test ends.
func Open(t testing.TB, opts ...repository.Option) *repository.Repository {
	t.Helper()
	dir := Build(t, indexer.Options{})
	opts = append([]repository.Option{repository.WithLogger(logger.Discard())}, opts...)
	repo, err := repository.Open(dir, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}
