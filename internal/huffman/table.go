package huffman

// weights is the fixed frequency table the legacy peer builds its tree
// from. Both ends must construct an identical tree, so these values are
// a wire compatibility contract and are never tuned.
var weights = [256]float64{
	0.14473691, 0.01147017, 0.00167522, 0.03831121,
	0.00356579, 0.03811315, 0.00178254, 0.00199644,
	0.00183511, 0.00225716, 0.00211240, 0.00308829,
	0.00172852, 0.00186608, 0.00215921, 0.00168891,
	0.00300380, 0.00263378, 0.00275578, 0.00157592,
	0.00222809, 0.00206607, 0.00149462, 0.00216236,
	0.00229602, 0.00163613, 0.00216437, 0.00305091,
	0.00186141, 0.00171375, 0.00247613, 0.00186969,
	0.00963380, 0.00257214, 0.00155401, 0.00248005,
	0.00159708, 0.00209461, 0.00265517, 0.00177086,
	0.00223798, 0.00324237, 0.00295482, 0.00292464,
	0.00145923, 0.00337179, 0.00514019, 0.00352502,
	0.00218761, 0.00287420, 0.00142734, 0.00162625,
	0.00269840, 0.00227828, 0.00188917, 0.00253703,
	0.00222354, 0.00302097, 0.00195083, 0.00317830,
	0.00248152, 0.00170992, 0.00334087, 0.00307325,
	0.00544802, 0.00239743, 0.00336925, 0.00275175,
	0.00261045, 0.00261072, 0.00252031, 0.00320329,
	0.00266815, 0.00229586, 0.00194856, 0.00148534,
	0.00222174, 0.00202172, 0.00164327, 0.00338070,
	0.00192053, 0.00228142, 0.00214901, 0.00200009,
	0.00185295, 0.00334756, 0.00246649, 0.00201453,
	0.00261281, 0.00153171, 0.00286433, 0.00142709,
	0.00421522, 0.00156077, 0.00326541, 0.00194177,
	0.00333601, 0.00332903, 0.00246056, 0.00297372,
	0.00496111, 0.00613512, 0.00244391, 0.00239721,
	0.00253733, 0.00205343, 0.00174826, 0.00161845,
	0.00212476, 0.00276433, 0.00187150, 0.00301897,
	0.00205453, 0.00229980, 0.00227312, 0.00311430,
	0.00211204, 0.00288496, 0.00307189, 0.00228512,
	0.00207878, 0.00324809, 0.00316993, 0.00207333,
	0.00280679, 0.00177265, 0.00153849, 0.00322348,
	0.00311730, 0.00167703, 0.00274361, 0.00220484,
	0.00261081, 0.00213124, 0.00270967, 0.00327145,
	0.00328860, 0.00269232, 0.00255485, 0.00201114,
	0.00207476, 0.00224434, 0.00214515, 0.00309812,
	0.00168066, 0.00193058, 0.00142197, 0.00228534,
	0.00220139, 0.00148486, 0.00150364, 0.00218319,
	0.00322261, 0.00171858, 0.00286226, 0.00194471,
	0.00183152, 0.00286078, 0.00169137, 0.00170823,
	0.00241076, 0.00280075, 0.00330896, 0.00321482,
	0.00198009, 0.00323018, 0.00226417, 0.00253934,
	0.00336866, 0.00141971, 0.00277644, 0.00253745,
	0.00306276, 0.00148638, 0.00301326, 0.00252939,
	0.00268775, 0.00226615, 0.00146165, 0.00282586,
	0.00254208, 0.00284011, 0.00334786, 0.00232847,
	0.00300015, 0.00327543, 0.00203251, 0.00329886,
	0.00329586, 0.00180728, 0.00309714, 0.00192522,
	0.00263865, 0.00207618, 0.00215905, 0.00243826,
	0.00273000, 0.00299084, 0.00289295, 0.00327262,
	0.00237236, 0.00300142, 0.00253944, 0.00313182,
	0.00262295, 0.00206411, 0.00292609, 0.00281011,
	0.00210472, 0.00173843, 0.00247058, 0.00321163,
	0.00299423, 0.00257634, 0.00192681, 0.00172484,
	0.00162459, 0.00278495, 0.00250297, 0.00332671,
	0.00221150, 0.00255509, 0.00207661, 0.00253315,
	0.00143787, 0.00311151, 0.00286149, 0.00207188,
	0.00246049, 0.00277722, 0.00158572, 0.00277922,
	0.00187075, 0.00335252, 0.00221156, 0.00162492,
	0.00224656, 0.00184827, 0.00266095, 0.00262488,
	0.00206785, 0.00176189, 0.00308111, 0.00213503,
	0.00223891, 0.00301061, 0.00189893, 0.00323801,
	0.00154873, 0.00198058, 0.00338377, 0.00149324,
	0.00291648, 0.00183534, 0.00522622, 0.03473691,
}
